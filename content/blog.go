package content

import (
	"strings"
	"time"
)

// BlogPost is a published article. Content is HTML sanitised by the backend.
type BlogPost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlogInput is a validated create/update payload. Obtain one from
// BlogForm.Validate.
type BlogInput struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
	Category string `json:"category"`

	valid bool
}

// Valid reports whether in came from a successful Validate.
func (in BlogInput) Valid() bool { return in.valid }

// BlogForm is raw editor input.
type BlogForm struct {
	Title    string `json:"title" validate:"min=2"`
	Excerpt  string `json:"excerpt" validate:"min=10"`
	Content  string `json:"content" validate:"min=50"`
	ImageURL string `json:"imageUrl" validate:"required"`
	Category string `json:"category" validate:"min=2"`
}

// FormFromPost prefills an edit form.
func FormFromPost(p BlogPost) BlogForm {
	return BlogForm{
		Title:    p.Title,
		Excerpt:  p.Excerpt,
		Content:  p.Content,
		ImageURL: p.ImageURL,
		Category: p.Category,
	}
}

var blogMessages = map[string]string{
	"title":    "Title must be at least 2 characters",
	"excerpt":  "Excerpt must be at least 10 characters",
	"content":  "Content must be at least 50 characters",
	"imageUrl": "Featured image is required",
	"category": "Category must be at least 2 characters",
}

// Validate trims every field and checks the editor constraints. On failure
// it returns a *ValidationError keyed by JSON field name.
func (f BlogForm) Validate() (BlogInput, error) {
	t := BlogForm{
		Title:    strings.TrimSpace(f.Title),
		Excerpt:  strings.TrimSpace(f.Excerpt),
		Content:  strings.TrimSpace(f.Content),
		ImageURL: strings.TrimSpace(f.ImageURL),
		Category: strings.TrimSpace(f.Category),
	}
	if err := validateStruct(t, blogMessages); err != nil {
		return BlogInput{}, err
	}
	return BlogInput{
		Title:    t.Title,
		Excerpt:  t.Excerpt,
		Content:  t.Content,
		ImageURL: t.ImageURL,
		Category: t.Category,
		valid:    true,
	}, nil
}
