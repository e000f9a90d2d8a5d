package model

// FetchRequest describes one page to fetch and how to interpret it.
type FetchRequest struct {
	// Kind tells the parser which document to produce.
	Kind NodeKind

	// Node is the node whose page is fetched. It is the zero NodeID for the
	// programme listing.
	Node NodeID

	// URL is the absolute page URL.
	URL string

	Locale Locale
}

// PageDocument is the parsed content of a fetched page.
// It is one of *ProgrammeListingPage, *ProgrammeDetailPage,
// *SpecializationDetailPage or *SubjectDetailPage.
type PageDocument interface {
	// DocumentKind returns the kind of node the page describes.
	DocumentKind() NodeKind
}

// ProgrammeListingPage is the top-level list of all programmes, grouped by
// faculty on the site.
type ProgrammeListingPage struct {
	Programmes []Node
}

// DocumentKind implements PageDocument.
func (*ProgrammeListingPage) DocumentKind() NodeKind { return KindListing }

// ProgrammeDetailPage is the page of a programme. It has two shapes:
// a specialization hub (Specializations set) or a study plan of a programme
// without specializations (Subjects set).
type ProgrammeDetailPage struct {
	Title           string
	Credits         string
	Specializations []Node
	Subjects        []Node
}

// DocumentKind implements PageDocument.
func (*ProgrammeDetailPage) DocumentKind() NodeKind { return KindProgramme }

// HasSpecializations reports whether the page is a specialization hub.
func (p *ProgrammeDetailPage) HasSpecializations() bool {
	return len(p.Specializations) > 0
}

// SpecializationDetailPage is the study plan of a specialization.
type SpecializationDetailPage struct {
	Title    string
	Credits  string
	Subjects []Node
}

// DocumentKind implements PageDocument.
func (*SpecializationDetailPage) DocumentKind() NodeKind { return KindSpecialization }

// SubjectDetailPage is the page of a single subject.
type SubjectDetailPage struct {
	Title   string
	Credits string
}

// DocumentKind implements PageDocument.
func (*SubjectDetailPage) DocumentKind() NodeKind { return KindSubject }
