package protocol

import (
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
)

// ToDocumentPosition converts a wire position to the internal model.
func ToDocumentPosition(p Position) document.Position {
	return document.Position{Line: p.Line, Column: p.Character}
}

// FromDocumentPosition converts an internal position to the wire model.
func FromDocumentPosition(p document.Position) Position {
	return Position{Line: p.Line, Character: p.Column}
}

func ToDocumentRange(r Range) document.Range {
	return document.Range{Start: ToDocumentPosition(r.Start), End: ToDocumentPosition(r.End)}
}

func FromDocumentRange(r document.Range) Range {
	return Range{Start: FromDocumentPosition(r.Start), End: FromDocumentPosition(r.End)}
}

func FromDocumentDiagnostic(d events.Diagnostic) Diagnostic {
	return Diagnostic{
		Range:    FromDocumentRange(d.Range),
		Severity: severityFromString(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

func severityFromString(s string) int {
	switch s {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	case "information":
		return SeverityInformation
	case "hint":
		return SeverityHint
	default:
		return SeverityError
	}
}
