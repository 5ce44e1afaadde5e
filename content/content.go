// Package content holds the site's entities and the editor's input schema.
package content

// Entity types used as query-key and invalidation scopes.
const (
	EntityBlog = "blog"
	EntityLead = "lead"
)
