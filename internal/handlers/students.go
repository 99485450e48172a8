package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dfe0990ngc/pcds-student-portal/internal/middleware"
	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
)

// StudentHandler exposes the authenticated academic and financial views.
type StudentHandler struct {
	students *services.StudentService
}

func NewStudentHandler(students *services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// GET /api/student/profile
func (h *StudentHandler) Profile(c *gin.Context) {
	profile, err := h.students.Profile(c.Request.Context(), middleware.StudentNumber(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Profile retrieved successfully", gin.H{
		"profile": profile,
	})
}

// GET /api/student/grades?sy=&sem=
func (h *StudentHandler) Grades(c *gin.Context) {
	sy := strings.TrimSpace(c.Query("sy"))
	sem := strings.TrimSpace(c.Query("sem"))

	view, err := h.students.Grades(c.Request.Context(), middleware.StudentNumber(c), sy, sem)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Grades retrieved successfully", gin.H{
		"data": view,
	})
}

// GET /api/student/account?sy=&sem=
func (h *StudentHandler) Account(c *gin.Context) {
	sy := strings.TrimSpace(c.Query("sy"))
	sem := strings.TrimSpace(c.Query("sem"))

	view, err := h.students.Account(c.Request.Context(), middleware.StudentNumber(c), sy, sem)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Account information retrieved successfully", gin.H{
		"data": view,
	})
}
