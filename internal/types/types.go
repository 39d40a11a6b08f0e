// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage, and utils can all import types without depending
// on each other.
package types

// Student represents a persisted student record.
//
// ID is assigned by the storage backend when the record is created
// (a Mongo ObjectID hex string or a UUID for SQLite) and never changes
// afterwards. PhotoURL holds the generated filename of the uploaded image.
type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
	PhotoURL string `json:"photoUrl"`
}

// StudentForm is the raw text submitted by the create and update forms.
//
// Age stays a string here: the form sends text, and "not an integer" must
// be reported as a validation error rather than a decode failure.
//
// validate:"..." tags are checked by the go-playground/validator package
// (see internal/validate). "posint" is a custom tag registered there.
type StudentForm struct {
	Name  string `form:"name"  validate:"required"`
	Age   string `form:"age"   validate:"posint"`
	Email string `form:"email" validate:"email"`
	Bio   string `form:"bio"   validate:"min=10"`
}

// ValidationError is a single field-level problem rendered back into a form.
// It is never persisted.
type ValidationError struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

// ImageRequired is the synthetic error used when a submission carries valid
// fields but no image.
var ImageRequired = ValidationError{Message: "Image is required.", Field: "image"}

// StudentPatch is a partial update. Zero-valued fields mean "not provided".
type StudentPatch struct {
	Name     string
	Age      int
	Email    string
	Bio      string
	PhotoURL string
}

// Merge returns a new Student built from old with every non-zero field of
// patch applied. Each field is decided independently; ID is never touched.
func Merge(old Student, patch StudentPatch) Student {
	merged := old

	if patch.Name != "" {
		merged.Name = patch.Name
	}
	if patch.Age != 0 {
		merged.Age = patch.Age
	}
	if patch.Email != "" {
		merged.Email = patch.Email
	}
	if patch.Bio != "" {
		merged.Bio = patch.Bio
	}
	if patch.PhotoURL != "" {
		merged.PhotoURL = patch.PhotoURL
	}

	return merged
}
