// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Each exported function receives the handler dependencies once, at route
// registration, and returns the func(http.ResponseWriter, *http.Request)
// the router calls on every request:
//
//	r.Get("/", student.List(deps))
//
// Submit handlers run a fixed, short-circuiting pipeline:
// multipart upload → field validation → image check → storage → redirect.
package student

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aanand-mishra/students-web/internal/storage"
	"github.com/aanand-mishra/students-web/internal/types"
	"github.com/aanand-mishra/students-web/internal/upload"
	"github.com/aanand-mishra/students-web/internal/utils/response"
	"github.com/aanand-mishra/students-web/internal/validate"
	"github.com/aanand-mishra/students-web/internal/views"
	"github.com/go-chi/chi/v5"
)

// imageField is the multipart field carrying the student photo.
const imageField = "image"

// UploadRecorder receives the outcome of every submitted upload
// ("stored", "rejected", "discarded").
type UploadRecorder interface {
	ObserveUpload(outcome string)
}

// Deps are the collaborators shared by every student handler.
type Deps struct {
	Storage   storage.Storage
	Uploader  *upload.Uploader
	Validator *validate.Validator
	Views     *views.Views

	// Prefix is the path the routes are mounted under, e.g. "/student".
	// Links in pages and the post-submit redirect are built from it.
	Prefix string

	// Metrics is optional.
	Metrics UploadRecorder
}

func (d Deps) observe(outcome string) {
	if d.Metrics != nil {
		d.Metrics.ObserveUpload(outcome)
	}
}

func (d Deps) listURL() string {
	if d.Prefix == "" {
		return "/"
	}
	return d.Prefix
}

func (d Deps) render(w http.ResponseWriter, page string, data any) {
	if err := d.Views.Render(w, http.StatusOK, page, data); err != nil {
		slog.Error("error rendering page", slog.String("page", page), slog.String("error", err.Error()))
		response.Error(w, http.StatusInternalServerError)
	}
}

// discard removes a stored upload that will not be referenced by any
// student. Failure only leaves an orphan file behind, so it is logged.
func (d Deps) discard(ctx context.Context, f *upload.File) {
	if f == nil {
		return
	}
	if err := d.Uploader.Discard(ctx, f); err != nil {
		slog.Warn("error discarding upload", slog.String("file", f.Name), slog.String("error", err.Error()))
		return
	}
	d.observe("discarded")
}

// parseUpload runs the upload step. On rejection it answers the request and
// returns nil.
func (d Deps) parseUpload(w http.ResponseWriter, r *http.Request) *upload.Form {
	form, err := d.Uploader.Parse(r, imageField)
	if err == nil {
		if form.File != nil {
			d.observe("stored")
		}
		return form
	}

	status := upload.Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("error storing upload", slog.String("error", err.Error()))
		response.Error(w, status)
		return nil
	}

	slog.Warn("upload rejected", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	d.observe("rejected")

	msg := http.StatusText(status)
	switch {
	case errors.Is(err, upload.ErrInvalidType):
		msg = "Invalid image type"
	case errors.Is(err, upload.ErrTooLarge):
		msg = "File too large"
	}
	response.ErrorMessage(w, status, msg)
	return nil
}

func formFromValues(v url.Values) types.StudentForm {
	return types.StudentForm{
		Name:  v.Get("name"),
		Age:   v.Get("age"),
		Email: v.Get("email"),
		Bio:   v.Get("bio"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// List handles GET {prefix}/
// Renders every student in storage order.
// ─────────────────────────────────────────────────────────────────────────────
func List(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := d.Storage.GetStudents(r.Context())
		if err != nil {
			slog.Error("error getting students", slog.String("error", err.Error()))
			response.Error(w, http.StatusInternalServerError)
			return
		}

		d.render(w, views.StudentIndex, views.IndexPage{
			Title:    "Students",
			Prefix:   d.Prefix,
			Students: students,
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Search handles GET {prefix}/search?keyword=
// The keyword is handed to storage as an unescaped regular expression;
// absent means match everything.
// ─────────────────────────────────────────────────────────────────────────────
func Search(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyword := r.URL.Query().Get("keyword")
		slog.Info("searching students", slog.String("keyword", keyword))

		students, err := d.Storage.SearchStudents(r.Context(), keyword)
		if err != nil {
			slog.Error("error searching students",
				slog.String("keyword", keyword),
				slog.String("error", err.Error()))
			response.Error(w, http.StatusInternalServerError)
			return
		}

		d.render(w, views.StudentIndex, views.IndexPage{
			Title:    "Students",
			Prefix:   d.Prefix,
			Keyword:  keyword,
			Students: students,
		})
	}
}

// CreateForm handles GET {prefix}/create
func CreateForm(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.render(w, views.StudentCreate, views.CreatePage{Title: "New student", Prefix: d.Prefix})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Create handles POST {prefix}/create (multipart, file field "image")
//
//	upload rejected    → 413 / 415 / 400, nothing validated
//	invalid fields     → create form with errors and typed values, file removed
//	no image           → create form with "Image is required."
//	otherwise          → student saved, 302 to the list
//
// ─────────────────────────────────────────────────────────────────────────────
func Create(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		form := d.parseUpload(w, r)
		if form == nil {
			return
		}

		input := formFromValues(form.Values)

		if errs := d.Validator.Student(input); len(errs) > 0 {
			d.discard(r.Context(), form.File)
			d.render(w, views.StudentCreate, views.CreatePage{
				Title: "New student", Prefix: d.Prefix, Form: input, Errors: errs,
			})
			return
		}

		if form.File == nil {
			d.render(w, views.StudentCreate, views.CreatePage{
				Title: "New student", Prefix: d.Prefix, Form: input,
				Errors: []types.ValidationError{types.ImageRequired},
			})
			return
		}

		// Validated as a positive integer above.
		age, _ := strconv.Atoi(input.Age)

		id, err := d.Storage.CreateStudent(r.Context(), types.Student{
			Name:     input.Name,
			Age:      age,
			Email:    input.Email,
			Bio:      input.Bio,
			PhotoURL: form.File.Name,
		})
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			d.discard(r.Context(), form.File)
			response.Error(w, http.StatusInternalServerError)
			return
		}

		slog.Info("student created", slog.String("id", id), slog.String("photo", form.File.Name))
		response.Redirect(w, r, d.listURL())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateForm handles GET {prefix}/update/{id}
// Unknown ids answer 404.
// ─────────────────────────────────────────────────────────────────────────────
func UpdateForm(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("getting a student", slog.String("id", id))

		student, err := d.Storage.GetStudentByID(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			response.Error(w, http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("error getting student", slog.String("id", id), slog.String("error", err.Error()))
			response.Error(w, http.StatusInternalServerError)
			return
		}

		d.render(w, views.StudentUpdate, views.UpdatePage{
			Title: "Edit student", Prefix: d.Prefix, Student: student,
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles POST {prefix}/update/{id} (multipart, file field "image")
//
// The stored student is fetched before validation so that a failing
// submission re-renders the ORIGINAL record; typed values are not echoed.
// A valid submission is merged field by field (types.Merge) and saved.
// ─────────────────────────────────────────────────────────────────────────────
func Update(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("updating a student", slog.String("id", id))

		form := d.parseUpload(w, r)
		if form == nil {
			return
		}

		existing, err := d.Storage.GetStudentByID(r.Context(), id)
		if err != nil {
			d.discard(r.Context(), form.File)
			if errors.Is(err, storage.ErrNotFound) {
				response.Error(w, http.StatusNotFound)
				return
			}
			slog.Error("error getting student", slog.String("id", id), slog.String("error", err.Error()))
			response.Error(w, http.StatusInternalServerError)
			return
		}

		input := formFromValues(form.Values)

		if errs := d.Validator.Student(input); len(errs) > 0 {
			d.discard(r.Context(), form.File)
			d.render(w, views.StudentUpdate, views.UpdatePage{
				Title: "Edit student", Prefix: d.Prefix, Student: existing, Errors: errs,
			})
			return
		}

		if form.File == nil {
			d.render(w, views.StudentUpdate, views.UpdatePage{
				Title: "Edit student", Prefix: d.Prefix, Student: existing,
				Errors: []types.ValidationError{types.ImageRequired},
			})
			return
		}

		age, _ := strconv.Atoi(input.Age)

		updated := types.Merge(existing, types.StudentPatch{
			Name:     input.Name,
			Age:      age,
			Email:    input.Email,
			Bio:      input.Bio,
			PhotoURL: form.File.Name,
		})

		if err := d.Storage.UpdateStudent(r.Context(), updated); err != nil {
			d.discard(r.Context(), form.File)
			if errors.Is(err, storage.ErrNotFound) {
				response.Error(w, http.StatusNotFound)
				return
			}
			slog.Error("error updating student", slog.String("id", id), slog.String("error", err.Error()))
			response.Error(w, http.StatusInternalServerError)
			return
		}

		slog.Info("student updated", slog.String("id", id), slog.String("photo", form.File.Name))
		response.Redirect(w, r, d.listURL())
	}
}
