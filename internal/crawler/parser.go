package crawler

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/vutcrawl/internal/model"
)

// ErrUnexpectedPage is returned when a page does not have the expected layout.
var ErrUnexpectedPage = errors.New("unexpected page layout")

// specializationHeadingRe marks a programme page as a specialization hub.
var specializationHeadingRe = regexp.MustCompile(`(?i)Specializace|Specialisations?|Specializations?`)

// noSpecializationCode is shown in the hub table for rows without a code.
const noSpecializationCode = "---"

// Parser turns catalog HTML into page documents. It is stateless and safe
// for concurrent use.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads an HTML page fetched for req. pageURL is the final URL of the
// response and is used to resolve relative links.
func (p *Parser) Parse(r io.Reader, req model.FetchRequest, pageURL string) (model.PageDocument, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	switch req.Kind {
	case model.KindListing:
		return p.ParseListing(doc, base)
	case model.KindProgramme:
		return p.ParseProgramme(doc, base, req.Node), nil
	case model.KindSpecialization:
		return p.ParseSpecialization(doc, base, req.Node), nil
	case model.KindSubject:
		return p.ParseSubject(doc), nil
	default:
		return nil, fmt.Errorf("%w: unknown request kind %d", ErrUnexpectedPage, req.Kind)
	}
}

// ParseListing extracts faculties and their programmes from the listing page.
// Programmes without a link or without any usable code are skipped.
func (p *Parser) ParseListing(doc *goquery.Document, base *url.URL) (*model.ProgrammeListingPage, error) {
	items := doc.Find(".c-faculties-list__item")
	if items.Length() == 0 {
		return nil, fmt.Errorf("%w: no faculty list", ErrUnexpectedPage)
	}

	page := &model.ProgrammeListingPage{}
	items.Each(func(_ int, item *goquery.Selection) {
		abbr := item.Find(".b-faculty-list__faculty").First()
		title := item.Find(".b-faculty-list__title").First()
		if abbr.Length() == 0 || title.Length() == 0 {
			return
		}
		faculty := model.Faculty{
			Code: cleanText(abbr.Text()),
			Name: cleanText(title.Text()),
		}

		item.Find(".b-programme").Each(func(_ int, prog *goquery.Selection) {
			link := prog.Find(".b-programme__title .b-programme__link").First()
			if link.Length() == 0 {
				return
			}
			href, _ := link.Attr("href")
			abs := resolve(base, href)
			if abs == "" {
				return
			}

			name, code := splitProgrammeLabel(link.Text())
			if code == "" {
				code = trailingID(abs)
			}
			if code == "" {
				return
			}

			fac := faculty
			page.Programmes = append(page.Programmes, model.Node{
				ID:       model.ProgrammeID(code),
				Name:     name,
				URL:      abs,
				Faculty:  &fac,
				Duration: studyDuration(prog),
			})
		})
	})
	return page, nil
}

// ParseProgramme reads a programme page. A hub page yields specializations;
// any other page is read as a study plan whose subjects hang directly below
// the programme.
func (p *Parser) ParseProgramme(doc *goquery.Document, base *url.URL, id model.NodeID) *model.ProgrammeDetailPage {
	page := &model.ProgrammeDetailPage{
		Title:   pageTitle(doc),
		Credits: maxCredits(doc.Text()),
	}

	if isSpecializationHub(doc) {
		page.Specializations = parseSpecializations(doc, base, id)
		if len(page.Specializations) > 0 {
			return page
		}
	}

	page.Subjects = subjectNodes(parsePlan(doc, base), model.NodeID{Programme: id.Programme})
	return page
}

// ParseSpecialization reads the study plan of a specialization.
func (p *Parser) ParseSpecialization(doc *goquery.Document, base *url.URL, id model.NodeID) *model.SpecializationDetailPage {
	return &model.SpecializationDetailPage{
		Title:    pageTitle(doc),
		Credits:  maxCredits(doc.Text()),
		Subjects: subjectNodes(parsePlan(doc, base), id),
	}
}

// ParseSubject reads a subject detail page.
func (p *Parser) ParseSubject(doc *goquery.Document) *model.SubjectDetailPage {
	return &model.SubjectDetailPage{
		Title:   pageTitle(doc),
		Credits: maxCredits(doc.Text()),
	}
}

func isSpecializationHub(doc *goquery.Document) bool {
	heading := doc.Find("h3").FilterFunction(func(_ int, h *goquery.Selection) bool {
		return specializationHeadingRe.MatchString(h.Text())
	})
	return heading.Length() > 0 && doc.Find("table.data").Length() > 0
}

func parseSpecializations(doc *goquery.Document, base *url.URL, id model.NodeID) []model.Node {
	var nodes []model.Node
	doc.Find("table.data").First().Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}

		link := cells.Eq(1).Find("a").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		abs := resolve(base, href)
		if abs == "" {
			return
		}

		code := cleanText(cells.Eq(0).Text())
		if code == "" || code == noSpecializationCode {
			code = trailingID(abs)
		}
		if code == "" {
			return
		}

		nodes = append(nodes, model.Node{
			ID:       model.SpecializationID(id.Programme, code),
			Name:     cleanText(link.Text()),
			URL:      abs,
			Duration: studyDuration(tr),
		})
	})
	return nodes
}

// subjectNodes turns plan entries into subject nodes below parent.
// Entries without a code or link cannot be visited and are dropped.
func subjectNodes(entries []planEntry, parent model.NodeID) []model.Node {
	nodes := make([]model.Node, 0, len(entries))
	for _, e := range entries {
		if e.code == "" || e.url == "" {
			continue
		}
		row := e.row
		nodes = append(nodes, model.Node{
			ID:      model.SubjectID(parent.Programme, parent.Specialization, e.code),
			Name:    e.name,
			URL:     e.url,
			PlanRow: &row,
		})
	}
	return nodes
}

func pageTitle(doc *goquery.Document) string {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if title := cleanText(h1.Text()); title != "" {
			return title
		}
	}
	return cleanText(doc.Find("title").First().Text())
}
