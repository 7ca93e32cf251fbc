// Package models defines the domain types for Munin.
package models

// RepoKey is the stable identity of a repository (owner/name). It is the
// map key for everything scoped per repo and never changes for a configured
// repository.
type RepoKey string

// Repo identifies one remote repository being mirrored. Instances come from
// configuration and are never mutated after creation.
type Repo struct {
	Owner  string `yaml:"owner" json:"owner"`
	Name   string `yaml:"name" json:"name"`
	Branch string `yaml:"branch" json:"branch"`
	Token  string `yaml:"token" json:"-"`
}

// Key returns the derived identity key used for equality and lookups.
// The access token and branch are deliberately excluded.
func (r Repo) Key() RepoKey {
	return RepoKey(r.Owner + "/" + r.Name)
}
