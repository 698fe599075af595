package dto

import (
	"airport-capacity-be/pkg/store"
	"airport-capacity-be/pkg/understanding"
	"airport-capacity-be/pkg/understanding/disambiguation"
	"airport-capacity-be/pkg/understanding/feedback"
)

type ProcessQueryRequest struct {
	Query     string `json:"query" validate:"required,max=2000"`
	ContextID string `json:"contextId,omitempty" validate:"omitempty,uuid4"`
}

type ProcessQueryResponse struct {
	QueryID         string                `json:"queryId"`
	SessionID       string                `json:"sessionId"`
	NormalizedQuery store.NormalizedQuery `json:"normalizedQuery"`
	ParsedQuery     *store.ParsedQuery    `json:"parsedQuery"`
	Ambiguous       bool                  `json:"ambiguous"`
	Ambiguities     []store.Ambiguity     `json:"ambiguities,omitempty"`
	Suggestions     []store.Suggestion    `json:"suggestions"`
	ProcessingSteps []string              `json:"processingSteps"`
}

type DisambiguateRequest struct {
	QueryID   string                      `json:"queryId" validate:"required"`
	ContextID string                      `json:"contextId" validate:"required,uuid4"`
	Response  disambiguation.UserResponse `json:"response" validate:"required"`
}

type DisambiguateResponse struct {
	QueryID              string             `json:"queryId"`
	ClarifiedQuery       *store.ParsedQuery `json:"clarifiedQuery"`
	AllResolved          bool               `json:"allResolved"`
	RemainingAmbiguities []store.Ambiguity  `json:"remainingAmbiguities,omitempty"`
}

type SubmitFeedbackRequest struct {
	QueryID      string                    `json:"queryId" validate:"required"`
	ContextID    string                    `json:"contextId,omitempty" validate:"omitempty,uuid4"`
	Query        string                    `json:"query" validate:"required,max=2000"`
	ParsedIntent string                    `json:"parsedIntent,omitempty"`
	Rating       int                       `json:"rating" validate:"required,min=1,max=5"`
	FeedbackType string                    `json:"feedbackType,omitempty" validate:"omitempty,oneof=intent entity variation general"`
	Comments     string                    `json:"comments,omitempty" validate:"max=1000"`
	Correction   *store.FeedbackCorrection `json:"correction,omitempty"`
}

type SubmitFeedbackResponse struct {
	FeedbackID string `json:"feedbackId"`
}

type TrackSuggestionRequest struct {
	ContextID string `json:"contextId" validate:"required,uuid4"`
}

type TrackSuggestionResponse struct {
	OK bool `json:"ok"`
}

type ApplyLearningRequest struct {
	ContextID string `json:"contextId,omitempty" validate:"omitempty,uuid4"`
}

type ApplyLearningResponse struct {
	Results feedback.ApplyResults `json:"results"`
}

type MetricsResponse struct {
	Metrics understanding.MetricsSnapshot `json:"metrics"`
}
