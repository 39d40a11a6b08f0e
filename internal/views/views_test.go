package views

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aanand-mishra/students-web/internal/types"
)

func TestRender_Index(t *testing.T) {
	v := MustNew()
	rec := httptest.NewRecorder()

	err := v.Render(rec, http.StatusOK, StudentIndex, IndexPage{
		Title:    "Students",
		Prefix:   "/student",
		Students: []types.Student{{ID: "1", Name: "Ann <b>", PhotoURL: "img-1.png"}},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Ann &lt;b&gt;") {
		t.Error("name not escaped")
	}
	if !strings.Contains(body, `href="/student/update/1"`) {
		t.Error("missing edit link")
	}
	if !strings.Contains(body, `src="/images/img-1.png"`) {
		t.Error("missing photo")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRender_CreateWithErrors(t *testing.T) {
	v := MustNew()
	rec := httptest.NewRecorder()

	err := v.Render(rec, http.StatusOK, StudentCreate, CreatePage{
		Prefix: "/student",
		Form:   types.StudentForm{Name: "Jo"},
		Errors: []types.ValidationError{types.ImageRequired},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `data-field="image"`) || !strings.Contains(body, "Image is required.") {
		t.Error("missing error entry")
	}
	if !strings.Contains(body, `value="Jo"`) {
		t.Error("entered value not echoed")
	}
}

func TestRender_UnknownPage(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := MustNew().Render(rec, http.StatusOK, "nope", nil); err == nil {
		t.Fatal("expected error")
	}
	if rec.Body.Len() != 0 {
		t.Error("wrote body for unknown page")
	}
}
