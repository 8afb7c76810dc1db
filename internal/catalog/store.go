package catalog

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// cardRecord is the row shape of the cards table; instance_of is stored as a
// comma-separated list.
type cardRecord struct {
	ID          string `gorm:"primaryKey"`
	Label       string
	Year        int
	InstanceOf  string
	Description string
	Image       string
}

func (cardRecord) TableName() string { return "cards" }

// LoadDatabase reads the whole cards table once. The connection is only used
// at startup; sessions themselves are never persisted.
func LoadDatabase(dsn string) (*Catalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	var records []cardRecord
	if err := db.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}

	cards := make([]Card, 0, len(records))
	for _, r := range records {
		cards = append(cards, Card{
			ID:          r.ID,
			Label:       r.Label,
			Year:        r.Year,
			InstanceOf:  splitTags(r.InstanceOf),
			Description: r.Description,
			Image:       r.Image,
		})
	}
	return New(cards), nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
