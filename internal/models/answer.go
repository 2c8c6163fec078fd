package models

import (
	"fmt"
	"strings"
)

type AnswerKind string

const (
	AnswerNone    AnswerKind = "none"
	AnswerText    AnswerKind = "text"
	AnswerList    AnswerKind = "list"
	AnswerMatch   AnswerKind = "match"
	AnswerIndices AnswerKind = "indices"
	AnswerBinary  AnswerKind = "binary"
	AnswerMedia   AnswerKind = "media"
)

// AnswerValue is the client-side value of one answer. The set of
// implementations is closed.
type AnswerValue interface {
	Kind() AnswerKind
	isAnswer()
}

type TextAnswer string

// ListAnswer is an ordered list aligned to a field or item list.
type ListAnswer []string

// MatchAnswer maps a left label to a right label.
type MatchAnswer map[string]string

// IndexAnswer lists toggled token indices.
type IndexAnswer []int

type BinaryKind string

const (
	BinaryDrawing BinaryKind = "drawing"
	BinaryAudio   BinaryKind = "audio"
	BinaryFile    BinaryKind = "file"
)

// BinaryAnswer is captured media that has not been uploaded yet. It is
// never persisted as-is.
type BinaryAnswer struct {
	Data        []byte
	ContentType string
	Filename    string
	Capture     BinaryKind
}

// MediaAnswer is an answer already stored as media.
type MediaAnswer struct {
	Ref        string `json:"ref"`
	DisplayURL string `json:"display_url,omitempty"`
}

func (TextAnswer) Kind() AnswerKind   { return AnswerText }
func (ListAnswer) Kind() AnswerKind   { return AnswerList }
func (MatchAnswer) Kind() AnswerKind  { return AnswerMatch }
func (IndexAnswer) Kind() AnswerKind  { return AnswerIndices }
func (BinaryAnswer) Kind() AnswerKind { return AnswerBinary }
func (MediaAnswer) Kind() AnswerKind  { return AnswerMedia }

func (TextAnswer) isAnswer()   {}
func (ListAnswer) isAnswer()   {}
func (MatchAnswer) isAnswer()  {}
func (IndexAnswer) isAnswer()  {}
func (BinaryAnswer) isAnswer() {}
func (MediaAnswer) isAnswer()  {}

// IsAudio reports whether the binary carries audio, by kind or content type.
func (b BinaryAnswer) IsAudio() bool {
	return b.Capture == BinaryAudio || strings.HasPrefix(strings.ToLower(b.ContentType), "audio/")
}

const mediaRefPrefix = "media:"

// MediaRef formats the stand-in string stored for binary answers.
func MediaRef(id ID) string {
	return mediaRefPrefix + string(id)
}

// ParseMediaRef extracts the media id from a "media:<id>" string.
func ParseMediaRef(s string) (ID, bool) {
	if !strings.HasPrefix(s, mediaRefPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(s, mediaRefPrefix))
	if id == "" {
		return "", false
	}
	return ID(id), true
}

func NewMediaAnswer(id ID, displayURL string) MediaAnswer {
	return MediaAnswer{Ref: MediaRef(id), DisplayURL: displayURL}
}

// AnswerPreview is a JSON-friendly rendering of a buffered answer.
type AnswerPreview struct {
	Kind  AnswerKind `json:"kind"`
	Value any        `json:"value,omitempty"`
}

func PreviewOf(v AnswerValue) AnswerPreview {
	switch a := v.(type) {
	case nil:
		return AnswerPreview{Kind: AnswerNone}
	case TextAnswer:
		return AnswerPreview{Kind: AnswerText, Value: string(a)}
	case ListAnswer:
		return AnswerPreview{Kind: AnswerList, Value: []string(a)}
	case MatchAnswer:
		return AnswerPreview{Kind: AnswerMatch, Value: map[string]string(a)}
	case IndexAnswer:
		return AnswerPreview{Kind: AnswerIndices, Value: []int(a)}
	case BinaryAnswer:
		return AnswerPreview{Kind: AnswerBinary, Value: map[string]any{
			"content_type": a.ContentType,
			"filename":     a.Filename,
			"size":         len(a.Data),
			"pending":      true,
		}}
	case MediaAnswer:
		return AnswerPreview{Kind: AnswerMedia, Value: a}
	default:
		return AnswerPreview{Kind: AnswerNone, Value: fmt.Sprintf("%v", v)}
	}
}
