package models

import "time"

// Repository is one indexed source checkout. Its ID is the repo_id tag that
// scopes every file and entity node ingested from it.
type Repository struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Name          string    `json:"name"`
	DefaultBranch string    `json:"defaultBranch"`
	LastIndexed   time.Time `json:"lastIndexed"`
	Status        string    `json:"status"` // pending, indexing, ready, error
	FilesCount    int       `json:"filesCount"`
	EntitiesCount int       `json:"entitiesCount"`
}

type CreateRepositoryInput struct {
	URL           string `json:"url"`
	DefaultBranch string `json:"defaultBranch"`
}

// IndexResult summarizes one pipeline run over a checkout.
type IndexResult struct {
	RepoID         string
	FilesProcessed int
	EntitiesFound  int
	Errors         []string
}
