package ingest

import (
	"strings"
	"time"

	"dealroom/internal/resolution/models"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

// Record is one raw extraction result as produced upstream, one JSON object
// per line. Entity is optional; when empty it is inferred from Context.
type Record struct {
	DocumentID  string         `json:"document_id"`
	ObjectType  string         `json:"object_type"`
	Name        string         `json:"name"`
	Vendor      string         `json:"vendor,omitempty"`
	Context     string         `json:"context,omitempty"`
	Entity      string         `json:"entity,omitempty"`
	SourceType  string         `json:"source_type"`
	Confidence  float64        `json:"confidence"`
	Evidence    string         `json:"evidence,omitempty"`
	ExtractedAt time.Time      `json:"extracted_at,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// validated is a Record with its stringly fields parsed into domain types.
type validated struct {
	docID      id.DocumentID
	objectType id.ObjectType
	name       string
	vendor     models.Vendor
	context    string
	entity     models.Entity // zero when inference is needed
	sourceType models.SourceType
	raw        Record
}

func (r Record) validate() (validated, error) {
	v := validated{raw: r}

	if strings.TrimSpace(r.Name) == "" {
		return v, dErrors.New(dErrors.CodeInvalidInput, "record missing name")
	}
	v.name = r.Name

	docID, err := id.ParseDocumentID(r.DocumentID)
	if err != nil {
		return v, err
	}
	v.docID = docID

	objectType, err := id.ParseObjectType(r.ObjectType)
	if err != nil {
		return v, err
	}
	v.objectType = objectType

	sourceType, err := models.ParseSourceType(r.SourceType)
	if err != nil {
		return v, err
	}
	v.sourceType = sourceType

	if r.Entity != "" {
		entity, err := models.ParseEntity(r.Entity)
		if err != nil {
			return v, err
		}
		v.entity = entity
	}

	v.vendor = models.NewVendor(r.Vendor)
	v.context = r.Context
	return v, nil
}
