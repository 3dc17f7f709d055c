package guard

import (
	"encoding/json"
	"fmt"
	"strconv"

	"chronoguard/internal/domain"
)

// RefField declares that a JSON body field carries a foreign reference of the
// given kind. Which fields are checked per resource is explicit configuration,
// not behavior scattered across call sites: whether comment creation verifies
// its event is an auditable policy choice here.
type RefField struct {
	Field string
	Kind  domain.ResourceKind
}

// RefPolicy maps each resource kind to the reference fields its create and
// update bodies may carry.
type RefPolicy map[domain.ResourceKind][]RefField

// DefaultRefPolicy declares the platform's cross-service references:
// events point at periods, media and comments point at events. Comments are
// included deliberately; a comment pointing at a missing event is rejected
// the same way a media item would be.
func DefaultRefPolicy() RefPolicy {
	return RefPolicy{
		domain.ResourceEvent:   {{Field: "period_id", Kind: domain.ResourcePeriod}},
		domain.ResourceMedia:   {{Field: "event_id", Kind: domain.ResourceEvent}},
		domain.ResourceComment: {{Field: "event_id", Kind: domain.ResourceEvent}},
	}
}

// Extract pulls the declared foreign references for kind out of a JSON
// request body. A declared field that is absent from the body yields no
// reference (updates may omit it); a present field with an unusable value is
// an error so a malformed reference can never slip through unchecked.
// An empty body yields no references.
func (rp RefPolicy) Extract(kind domain.ResourceKind, body []byte) ([]domain.ForeignReference, error) {
	fields := rp[kind]
	if len(fields) == 0 || len(body) == 0 {
		return nil, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing request body: %w", err)
	}

	var refs []domain.ForeignReference
	for _, f := range fields {
		raw, ok := payload[f.Field]
		if !ok || raw == nil {
			continue
		}
		id, err := refID(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Field, err)
		}
		refs = append(refs, domain.ForeignReference{Kind: f.Kind, ID: id})
	}
	return refs, nil
}

// refID normalizes a JSON field value into a reference ID. The platform
// services use integer primary keys but clients send both numbers and strings.
func refID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty reference id")
		}
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("non-integer reference id %v", v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("unsupported reference id type %T", raw)
	}
}
