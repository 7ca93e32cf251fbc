package models

// GitOp is one intended mutation against a repo's remote tree. The set is
// closed: write, delete, move. A batch of ops for one repo is replayed into
// a single commit; ops for unrelated paths are order-independent.
type GitOp interface {
	isGitOp()
}

// WriteOp creates or replaces the blob at Path.
type WriteOp struct {
	Path    string
	Content string
}

// DeleteOp removes the blob at Path.
type DeleteOp struct {
	Path string
}

// MoveOp renames From to To without re-uploading the blob content.
type MoveOp struct {
	From string
	To   string
}

func (WriteOp) isGitOp()  {}
func (DeleteOp) isGitOp() {}
func (MoveOp) isGitOp()   {}
