package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/jrsteele09/repairshop-client/ui"
)

const defaultProblemText = "Request failed"

// ProblemDetails is the RFC 7807 body the API returns on failure.
type ProblemDetails struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title,omitempty"`
	Status   int                 `json:"status,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

func (p *ProblemDetails) Error() string {
	return strings.ReplaceAll(p.Text(), "\n", "; ")
}

// Text renders the title, the detail and one line per field error, fields sorted.
func (p *ProblemDetails) Text() string {
	if p == nil {
		return defaultProblemText
	}
	var lines []string
	if p.Title != "" {
		lines = append(lines, p.Title)
	}
	if p.Detail != "" {
		lines = append(lines, p.Detail)
	}
	fields := make([]string, 0, len(p.Errors))
	for field := range p.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		lines = append(lines, fmt.Sprintf("%s: %s", field, strings.Join(p.Errors[field], ", ")))
	}
	if len(lines) == 0 {
		return defaultProblemText
	}
	return strings.Join(lines, "\n")
}

// APIError is a non-success response from the API.
type APIError struct {
	Method        string
	Path          string
	Status        int
	Problem       *ProblemDetails
	CorrelationID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Problem.Error())
}

func (e *APIError) Unwrap() error {
	if e.Problem == nil {
		return nil
	}
	return e.Problem
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ToProblemDetails normalises any error into a ProblemDetails.
func ToProblemDetails(err error) *ProblemDetails {
	if err == nil {
		return nil
	}
	var problem *ProblemDetails
	if apperrors.As(err, &problem) && problem != nil {
		return problem
	}
	return &ProblemDetails{Title: err.Error(), Status: StatusOf(err)}
}

// ReportAPIError shows err to the user. 401 and expired sessions are already
// handled by the client and are not reported again.
func ReportAPIError(notifier ui.Notifier, fallbackTitle string, err error) {
	if err == nil || notifier == nil {
		return
	}

	status := StatusOf(err)
	switch {
	case status == http.StatusUnauthorized, apperrors.Is(err, apperrors.ErrSessionExpired):
		return
	case status == http.StatusForbidden, apperrors.Is(err, apperrors.ErrAdminOnly):
		notifier.Notify(ui.LevelError, "Not authorized", "Your user is not allowed to perform this action.")
	case status >= http.StatusInternalServerError:
		description := "Something went wrong. Please try again."
		var apiErr *APIError
		if apperrors.As(err, &apiErr) && apiErr.CorrelationID != "" {
			description += "\nID: " + apiErr.CorrelationID
		}
		notifier.Notify(ui.LevelError, "Server error", description)
	default:
		notifier.Notify(ui.LevelError, fallbackTitle, ToProblemDetails(err).Text())
	}
}
