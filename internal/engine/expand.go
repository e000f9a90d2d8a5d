package engine

import (
	"fmt"

	"github.com/nao1215/vutcrawl/internal/model"
)

// expand builds the record of node from its page and returns the children
// the page lists. A programme page has one of two shapes: with
// specializations, whose subjects are found one level down, or without,
// listing its subjects directly.
func expand(node model.Node, doc model.PageDocument, locale model.Locale) (model.Record, []model.Node, error) {
	switch node.Kind() {
	case model.KindProgramme:
		page, ok := doc.(*model.ProgrammeDetailPage)
		if !ok {
			return nil, nil, mismatch(node, doc)
		}
		rec := &model.ProgrammeNode{
			Code:            node.ID.Programme,
			Name:            firstNonEmpty(node.Name, page.Title),
			Duration:        node.Duration,
			Credits:         page.Credits,
			URL:             node.URL,
			Specializations: []string{},
			Locale:          locale,
		}
		if node.Faculty != nil {
			rec.Faculty = *node.Faculty
		}
		if page.HasSpecializations() {
			return rec, page.Specializations, nil
		}
		return rec, page.Subjects, nil

	case model.KindSpecialization:
		page, ok := doc.(*model.SpecializationDetailPage)
		if !ok {
			return nil, nil, mismatch(node, doc)
		}
		rec := &model.SpecializationNode{
			ProgrammeCode: node.ID.Programme,
			Code:          node.ID.Specialization,
			Name:          firstNonEmpty(node.Name, page.Title),
			Duration:      node.Duration,
			Credits:       page.Credits,
			URL:           node.URL,
			Locale:        locale,
		}
		return rec, page.Subjects, nil

	case model.KindSubject:
		page, ok := doc.(*model.SubjectDetailPage)
		if !ok {
			return nil, nil, mismatch(node, doc)
		}
		rec := &model.SubjectRecord{
			ProgrammeCode:      node.ID.Programme,
			SpecializationCode: node.ID.Specialization,
			Code:               node.ID.Subject,
			Name:               firstNonEmpty(node.Name, page.Title),
			Credits:            page.Credits,
			URL:                node.URL,
			Locale:             locale,
		}
		if row := node.PlanRow; row != nil {
			rec.Credits = firstNonEmpty(row.Credits, page.Credits)
			rec.Obligation = row.Obligation
			rec.Completion = row.Completion
			rec.Group = row.Group
			rec.Semesters = row.Semesters
			rec.Year = row.Year
		}
		return rec, nil, nil

	default:
		return nil, nil, model.NewPermanentError(node.URL, fmt.Sprintf("cannot expand %s node", node.Kind()), nil)
	}
}

// adopt places child directly below parent. It reports false when the child
// code is missing or malformed.
func adopt(parent model.NodeID, child model.Node) (model.Node, bool) {
	switch {
	case child.ID.Subject != "":
		child.ID = model.SubjectID(parent.Programme, parent.Specialization, child.ID.Subject)
	case child.ID.Specialization != "" && parent.Kind() == model.KindProgramme:
		child.ID = model.SpecializationID(parent.Programme, child.ID.Specialization)
	default:
		return child, false
	}
	return child, child.ID.Validate() == nil
}

func mismatch(node model.Node, doc model.PageDocument) error {
	return model.NewPermanentError(node.URL,
		fmt.Sprintf("unexpected %s document for %s node", doc.DocumentKind(), node.Kind()), nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
