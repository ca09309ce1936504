package service

import (
	"github.com/smallbiznis/adminwatch/internal/notification/domain"
	"gorm.io/datatypes"
)

func datatypesEvent(event domain.Event) datatypes.JSONType[domain.Event] {
	return datatypes.NewJSONType(event)
}

func eventPayload(event domain.Event) datatypes.JSONMap {
	payload := datatypes.JSONMap{
		"event_id":     event.ID,
		"category":     string(event.Category),
		"country_code": event.CountryCode,
		"title":        event.Title,
		"body":         event.Body,
		"occurred_at":  event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if event.Severity != "" {
		payload["severity"] = event.Severity
	}
	if len(event.Data) > 0 {
		payload["data"] = event.Data
	}
	return payload
}
