package student

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aanand-mishra/students-web/internal/types"
	"github.com/aanand-mishra/students-web/internal/upload"
	"github.com/aanand-mishra/students-web/internal/validate"
	"github.com/aanand-mishra/students-web/internal/views"
	"github.com/go-chi/chi/v5"
)

// ── Test helpers ──

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) ObserveUpload(outcome string) {
	c.outcomes[outcome]++
}

type testEnv struct {
	router  http.Handler
	store   *fakeStorage
	dir     string
	metrics *countingRecorder
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	disk, err := upload.NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	cfg := upload.DefaultConfig()
	cfg.Now = func() time.Time { return time.UnixMilli(1700000000000) }

	env := &testEnv{
		store:   newFakeStorage(),
		dir:     dir,
		metrics: &countingRecorder{outcomes: map[string]int{}},
	}

	d := Deps{
		Storage:   env.store,
		Uploader:  upload.New(disk, cfg),
		Validator: validate.New(),
		Views:     views.MustNew(),
		Prefix:    "/student",
		Metrics:   env.metrics,
	}

	r := chi.NewRouter()
	r.Route("/student", func(r chi.Router) {
		r.Get("/", List(d))
		r.Get("/search", Search(d))
		r.Get("/create", CreateForm(d))
		r.Post("/create", Create(d))
		r.Get("/update/{id}", UpdateForm(d))
		r.Post("/update/{id}", Update(d))
	})
	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, en := range entries {
		names = append(names, en.Name())
	}
	return names
}

type image struct {
	filename    string
	contentType string
	content     []byte
}

var validPNG = &image{filename: "me.png", contentType: "image/png", content: []byte("\x89PNG fake")}

func multipartRequest(t *testing.T, path string, fields map[string]string, img *image) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range []string{"name", "age", "email", "bio"} {
		if v, ok := fields[k]; ok {
			if err := w.WriteField(k, v); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
		}
	}
	if img != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+img.filename+`"`)
		h.Set("Content-Type", img.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write(img.content)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"name":  "Ann Smith",
		"age":   "21",
		"email": "ann@example.com",
		"bio":   "Enjoys chess and long walks.",
	}
}

func errorFields(body string) []string {
	var out []string
	for _, chunk := range strings.Split(body, `data-field="`)[1:] {
		out = append(out, chunk[:strings.Index(chunk, `"`)])
	}
	return out
}

// ── List / Search ──

func TestList(t *testing.T) {
	env := setup(t)
	env.store.seed(types.Student{Name: "Zed"})
	env.store.seed(types.Student{Name: "Amy"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Index(body, "Zed") > strings.Index(body, "Amy") || !strings.Contains(body, "Amy") {
		t.Fatalf("students missing or out of order:\n%s", body)
	}
}

func TestSearch_CaseSensitiveSubstring(t *testing.T) {
	env := setup(t)
	for _, n := range []string{"Ann", "Joanna", "Anne Marie", "ANN", "Bob"} {
		env.store.seed(types.Student{Name: n})
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/search?keyword=Ann", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<td>Ann</td>", "<td>Anne Marie</td>"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
	for _, notWant := range []string{"<td>Joanna</td>", "<td>ANN</td>", "<td>Bob</td>"} {
		if strings.Contains(body, notWant) {
			t.Errorf("unexpected %s", notWant)
		}
	}
}

func TestSearch_NoKeywordMatchesAll(t *testing.T) {
	env := setup(t)
	env.store.seed(types.Student{Name: "Ann"})
	env.store.seed(types.Student{Name: "Bob"})

	body := env.do(httptest.NewRequest(http.MethodGet, "/student/search", nil)).Body.String()

	if !strings.Contains(body, "<td>Ann</td>") || !strings.Contains(body, "<td>Bob</td>") {
		t.Fatalf("expected both students:\n%s", body)
	}
}

func TestSearch_InvalidPatternIs500(t *testing.T) {
	env := setup(t)
	env.store.seed(types.Student{Name: "Ann"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/search?keyword=%28", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

// ── Create ──

func TestCreateForm(t *testing.T) {
	env := setup(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/create", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `enctype="multipart/form-data"`) {
		t.Fatalf("status = %d body:\n%s", rec.Code, rec.Body.String())
	}
}

func TestCreate_Valid(t *testing.T) {
	env := setup(t)

	rec := env.do(multipartRequest(t, "/student/create", validFields(), validPNG))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302\n%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/student" {
		t.Errorf("Location = %q", loc)
	}

	all := env.store.all()
	if len(all) != 1 {
		t.Fatalf("stored %d students", len(all))
	}
	got := all[0]
	want := types.Student{ID: got.ID, Name: "Ann Smith", Age: 21, Email: "ann@example.com", Bio: "Enjoys chess and long walks.", PhotoURL: "img-1700000000000.png"}
	if got != want {
		t.Errorf("stored %+v, want %+v", got, want)
	}
	if files := env.files(t); len(files) != 1 || files[0] != "img-1700000000000.png" {
		t.Errorf("files = %v", files)
	}
	if env.metrics.outcomes["stored"] != 1 {
		t.Errorf("metrics = %v", env.metrics.outcomes)
	}
}

func TestCreate_InvalidFieldsRerenderWithoutPersisting(t *testing.T) {
	env := setup(t)

	rec := env.do(multipartRequest(t, "/student/create",
		map[string]string{"name": "Jo", "age": "0", "email": "x", "bio": "short"}, validPNG))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.Join(errorFields(rec.Body.String()), ","); got != "age,email,bio" {
		t.Errorf("error fields = %q, want age,email,bio", got)
	}
	if !strings.Contains(rec.Body.String(), `value="Jo"`) {
		t.Error("typed name not echoed")
	}
	if env.store.creates != 0 {
		t.Error("student persisted")
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("orphaned files: %v", files)
	}
	if env.metrics.outcomes["discarded"] != 1 {
		t.Errorf("metrics = %v", env.metrics.outcomes)
	}
}

func TestCreate_EachMissingRuleReported(t *testing.T) {
	cases := map[string]string{
		"name":  "",
		"age":   "-1",
		"email": "not-an-email",
		"bio":   "tiny",
	}

	for field, bad := range cases {
		t.Run(field, func(t *testing.T) {
			env := setup(t)
			fields := validFields()
			fields[field] = bad

			rec := env.do(multipartRequest(t, "/student/create", fields, validPNG))

			if got := errorFields(rec.Body.String()); len(got) != 1 || got[0] != field {
				t.Errorf("error fields = %v, want [%s]", got, field)
			}
			if env.store.creates != 0 {
				t.Error("student persisted")
			}
		})
	}
}

func TestCreate_MissingImage(t *testing.T) {
	env := setup(t)

	rec := env.do(multipartRequest(t, "/student/create", validFields(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if got := errorFields(body); len(got) != 1 || got[0] != "image" {
		t.Fatalf("error fields = %v", got)
	}
	if !strings.Contains(body, "Image is required.") {
		t.Error("missing message")
	}
	if env.store.creates != 0 {
		t.Error("student persisted")
	}
}

func TestCreate_UploadRejections(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 5*1024*1024+1)

	cases := []struct {
		name string
		img  *image
		want int
	}{
		{"gif", &image{filename: "a.gif", contentType: "image/gif", content: []byte("gif")}, http.StatusUnsupportedMediaType},
		{"oversize", &image{filename: "a.jpg", contentType: "image/jpeg", content: big}, http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)

			rec := env.do(multipartRequest(t, "/student/create", validFields(), tc.img))

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if env.store.creates != 0 {
				t.Error("student persisted")
			}
			if files := env.files(t); len(files) != 0 {
				t.Errorf("files left: %v", files)
			}
			if env.metrics.outcomes["rejected"] != 1 {
				t.Errorf("metrics = %v", env.metrics.outcomes)
			}
		})
	}
}

func TestCreate_StorageFailureRemovesFile(t *testing.T) {
	env := setup(t)
	env.store.createErr = errors.New("db down")

	rec := env.do(multipartRequest(t, "/student/create", validFields(), validPNG))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("files left: %v", files)
	}
}

// ── Update ──

func seedAnn(env *testEnv) (string, types.Student) {
	s := types.Student{Name: "Ann", Age: 20, Email: "ann@test.com", Bio: "likes reading", PhotoURL: "img-1.png"}
	id := env.store.seed(s)
	s.ID = id
	return id, s
}

func TestUpdateForm(t *testing.T) {
	env := setup(t)
	id, _ := seedAnn(env)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/update/"+id, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="ann@test.com"`) || !strings.Contains(body, `action="/student/update/`+id+`"`) {
		t.Fatalf("form not pre-populated:\n%s", body)
	}
}

func TestUpdateForm_NotFound(t *testing.T) {
	env := setup(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/student/update/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdate_Valid(t *testing.T) {
	env := setup(t)
	id, _ := seedAnn(env)

	rec := env.do(multipartRequest(t, "/student/update/"+id, validFields(), validPNG))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/student" {
		t.Errorf("Location = %q", loc)
	}

	got, _ := env.store.GetStudentByID(context.Background(), id)
	want := types.Student{ID: id, Name: "Ann Smith", Age: 21, Email: "ann@example.com", Bio: "Enjoys chess and long walks.", PhotoURL: "img-1700000000000.png"}
	if got != want {
		t.Errorf("stored %+v, want %+v", got, want)
	}
}

func TestUpdate_InvalidKeepsStoredAndRendersOriginal(t *testing.T) {
	env := setup(t)
	id, original := seedAnn(env)

	fields := validFields()
	fields["name"] = "Typed Name"
	fields["age"] = "0"

	rec := env.do(multipartRequest(t, "/student/update/"+id, fields, validPNG))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if got := errorFields(body); len(got) != 1 || got[0] != "age" {
		t.Errorf("error fields = %v", got)
	}
	if !strings.Contains(body, `value="Ann"`) || strings.Contains(body, "Typed Name") {
		t.Error("form should show the stored record, not typed values")
	}

	got, _ := env.store.GetStudentByID(context.Background(), id)
	if got != original {
		t.Errorf("stored changed: %+v", got)
	}
	if env.store.updates != 0 {
		t.Error("update persisted")
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("orphaned files: %v", files)
	}
}

func TestUpdate_MissingImage(t *testing.T) {
	env := setup(t)
	id, original := seedAnn(env)

	rec := env.do(multipartRequest(t, "/student/update/"+id, validFields(), nil))

	if got := errorFields(rec.Body.String()); len(got) != 1 || got[0] != "image" {
		t.Fatalf("error fields = %v", got)
	}
	got, _ := env.store.GetStudentByID(context.Background(), id)
	if got != original {
		t.Errorf("stored changed: %+v", got)
	}
}

func TestUpdate_NotFoundRemovesUpload(t *testing.T) {
	env := setup(t)

	rec := env.do(multipartRequest(t, "/student/update/nope", validFields(), validPNG))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if files := env.files(t); len(files) != 0 {
		t.Errorf("files left: %v", files)
	}
}

func TestUpdate_UploadRejected(t *testing.T) {
	env := setup(t)
	id, original := seedAnn(env)

	rec := env.do(multipartRequest(t, "/student/update/"+id, validFields(),
		&image{filename: "a.bmp", contentType: "image/bmp", content: []byte("bmp")}))

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", rec.Code)
	}
	got, _ := env.store.GetStudentByID(context.Background(), id)
	if got != original {
		t.Errorf("stored changed: %+v", got)
	}
}
