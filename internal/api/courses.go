package api

import (
	"context"
	"log/slog"
	"net/http"
)

// Catalog is the slice of the knowledge layer the courses handler needs.
type Catalog interface {
	CourseCount(ctx context.Context) (int, error)
	CourseTitles(ctx context.Context) ([]string, error)
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type coursesHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// courses returns the course catalog statistics shown in the UI sidebar.
func (h *coursesHandler) courses(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.CourseCount(r.Context())
	if err != nil {
		h.logger.Error("counting courses", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog_failed", "failed to load course catalog", h.logger)
		return
	}

	titles, err := h.catalog.CourseTitles(r.Context())
	if err != nil {
		h.logger.Error("listing course titles", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog_failed", "failed to load course catalog", h.logger)
		return
	}
	if titles == nil {
		titles = []string{}
	}

	writeJSON(w, http.StatusOK, coursesResponse{
		TotalCourses: count,
		CourseTitles: titles,
	}, h.logger)
}
