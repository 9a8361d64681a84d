// Package solution models the in-memory view of the user's project/solution
// that the edit-session driver mutates on every file change: projects owning
// ordered documents and additional documents, replaced by value on each edit.
package solution

import "fmt"

// Severity classifies a Diagnostic.
type Severity int

// Hidden, Info, Warning, and Error enumerate diagnostic severities, ordered
// from least to most actionable.
const (
	Hidden Severity = iota
	Info
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single compiler or edit-continuation message scoped to a project.
type Diagnostic struct {
	ProjectID        string
	Severity         Severity
	FormattedMessage string
}

// Document is a primary source file participating in compilation.
type Document struct {
	ID   string
	Path string
	Text string
}

// AdditionalDocument is a non-source file tracked alongside a project (e.g.
// markup) whose identity must be preserved across text replacement.
type AdditionalDocument struct {
	ID   string
	Path string
	Text string
}

// Project owns an ordered set of Documents and AdditionalDocuments.
type Project struct {
	ID                  string
	Name                string
	Documents           []Document
	AdditionalDocuments []AdditionalDocument
	Diagnostics         []Diagnostic
}

// HasErrors reports whether the project's compiler diagnostics contain any
// Error-severity entries.
func (p Project) HasErrors() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Solution is an immutable-by-value snapshot of the user's projects. Every
// mutation (WithDocumentText, WithAdditionalDocumentText) returns a new
// Solution; the caller decides whether to make it the current one.
type Solution struct {
	Projects []Project
}

// DocumentLocation identifies where a path was found: as a primary document
// or an additional document, and in which project.
type DocumentLocation struct {
	ProjectIndex int
	DocIndex     int
	Additional   bool
}

// Found reports whether the location refers to an actual match.
func (l DocumentLocation) Found() bool {
	return l.ProjectIndex >= 0
}

// notFound is the zero-value sentinel for a failed lookup.
var notFound = DocumentLocation{ProjectIndex: -1, DocIndex: -1}

// FindByPath locates path among primary documents first, then additional
// documents, across all projects. Primary documents take priority over
// additional documents with the same path, matching the edit-session
// driver's tie-break rule.
func (s Solution) FindByPath(path string) DocumentLocation {
	for pi, proj := range s.Projects {
		for di, doc := range proj.Documents {
			if doc.Path == path {
				return DocumentLocation{ProjectIndex: pi, DocIndex: di}
			}
		}
	}
	for pi, proj := range s.Projects {
		for di, doc := range proj.AdditionalDocuments {
			if doc.Path == path {
				return DocumentLocation{ProjectIndex: pi, DocIndex: di, Additional: true}
			}
		}
	}
	return notFound
}

// WithDocumentText returns a new Solution with the primary document at loc
// replaced by newText. loc must refer to a primary document location
// previously returned by FindByPath.
func (s Solution) WithDocumentText(loc DocumentLocation, newText string) (Solution, error) {
	if !loc.Found() || loc.Additional {
		return Solution{}, fmt.Errorf("solution: location does not refer to a primary document")
	}
	return s.withText(loc, newText, false)
}

// WithAdditionalDocumentText returns a new Solution with the additional
// document at loc replaced by newText, preserving its document ID.
func (s Solution) WithAdditionalDocumentText(loc DocumentLocation, newText string) (Solution, error) {
	if !loc.Found() || !loc.Additional {
		return Solution{}, fmt.Errorf("solution: location does not refer to an additional document")
	}
	return s.withText(loc, newText, true)
}

func (s Solution) withText(loc DocumentLocation, newText string, additional bool) (Solution, error) {
	projects := make([]Project, len(s.Projects))
	copy(projects, s.Projects)

	proj := projects[loc.ProjectIndex]
	if additional {
		docs := make([]AdditionalDocument, len(proj.AdditionalDocuments))
		copy(docs, proj.AdditionalDocuments)
		docs[loc.DocIndex].Text = newText
		proj.AdditionalDocuments = docs
	} else {
		docs := make([]Document, len(proj.Documents))
		copy(docs, proj.Documents)
		docs[loc.DocIndex].Text = newText
		proj.Documents = docs
	}
	projects[loc.ProjectIndex] = proj

	return Solution{Projects: projects}, nil
}

// ProjectDiagnostics returns the compiler diagnostics for the project
// owning the document at loc.
func (s Solution) ProjectDiagnostics(loc DocumentLocation) []Diagnostic {
	if !loc.Found() {
		return nil
	}
	return s.Projects[loc.ProjectIndex].Diagnostics
}
