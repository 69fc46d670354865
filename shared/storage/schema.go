package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Keys every item must carry with a non-null value. encoding/json leaves a
// missing or null key at its zero value, so presence is checked on the raw
// document before the typed one is trusted.
var (
	itemRequired      = []string{"id", "topic", "description", "caption", "thumbnailPrompt", "hookScore", "status", "createdAt"}
	itemNonNull       = []string{"retentionNotes"}
	analyticsRequired = []string{"averageViewDuration", "retentionRate", "clickThroughRate", "commentsSummary", "dropOffMoments", "improvementIdeas"}
	dropOffRequired   = []string{"timestamp", "description"}
)

type rawObject map[string]json.RawMessage

type rawDocument struct {
	Videos  json.RawMessage `json:"videos"`
	History json.RawMessage `json:"history"`
}

var jsonNull = []byte("null")

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// checkRequiredFields rejects documents whose items omit required keys or set
// them, or a present list, to null.
func checkRequiredFields(data []byte) error {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for _, list := range []struct {
		name string
		raw  json.RawMessage
	}{{"videos", doc.Videos}, {"history", doc.History}} {
		if list.raw == nil {
			continue
		}
		if isNull(list.raw) {
			return fmt.Errorf("%s is null", list.name)
		}

		var items []rawObject
		if err := json.Unmarshal(list.raw, &items); err != nil {
			return fmt.Errorf("%s: %w", list.name, err)
		}
		for i, item := range items {
			if err := checkItem(item); err != nil {
				return fmt.Errorf("%s[%d]: %w", list.name, i, err)
			}
		}
	}
	return nil
}

func checkItem(item rawObject) error {
	if item == nil {
		return fmt.Errorf("item is null")
	}
	if err := requireKeys(item, itemRequired); err != nil {
		return err
	}
	if err := rejectNull(item, itemNonNull); err != nil {
		return err
	}

	raw, ok := item["analytics"]
	if !ok || isNull(raw) {
		return nil
	}
	var analytics rawObject
	if err := json.Unmarshal(raw, &analytics); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if err := requireKeys(analytics, analyticsRequired); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}

	var moments []rawObject
	if err := json.Unmarshal(analytics["dropOffMoments"], &moments); err != nil {
		return fmt.Errorf("analytics.dropOffMoments: %w", err)
	}
	for i, m := range moments {
		if m == nil {
			return fmt.Errorf("analytics.dropOffMoments[%d] is null", i)
		}
		if err := requireKeys(m, dropOffRequired); err != nil {
			return fmt.Errorf("analytics.dropOffMoments[%d]: %w", i, err)
		}
	}
	return nil
}

func requireKeys(obj rawObject, keys []string) error {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			return fmt.Errorf("missing %q", key)
		}
		if isNull(raw) {
			return fmt.Errorf("%q is null", key)
		}
	}
	return nil
}

func rejectNull(obj rawObject, keys []string) error {
	for _, key := range keys {
		if raw, ok := obj[key]; ok && isNull(raw) {
			return fmt.Errorf("%q is null", key)
		}
	}
	return nil
}
