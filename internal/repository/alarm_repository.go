package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parkwatch-service/internal/detector"
)

// Finding is the persisted form of one detector result.
type Finding struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	BBox       *detector.Box `json:"bbox,omitempty"`
}

// MarshalFindings converts detector output into the JSONB column value.
func MarshalFindings(detections []detector.Detection) (datatypes.JSON, error) {
	findings := make([]Finding, 0, len(detections))
	for _, d := range detections {
		box := d.Box
		findings = append(findings, Finding{
			Label:      d.Label,
			Confidence: d.Score,
			BBox:       &box,
		})
	}
	return json.Marshal(findings)
}

// ThreatRecord stores one positive weapon finding. Created by the sighting
// path; the acknowledged fields are flipped later by operators.
type ThreatRecord struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	DetectionID    *int64         `json:"detectionId,omitempty"`
	Timestamp      time.Time      `gorm:"not null" json:"timestamp"`
	Address        string         `gorm:"not null" json:"address"`
	ZoneName       *string        `json:"zoneName,omitempty"`
	Plate          *string        `gorm:"index" json:"plate,omitempty"`
	VehicleColor   *string        `json:"vehicleColor,omitempty"`
	VehicleType    *string        `json:"vehicleType,omitempty"`
	Findings       datatypes.JSON `gorm:"type:jsonb" json:"threats"`
	AlertText      string         `gorm:"not null" json:"alertText"`
	HasAudio       bool           `json:"hasAudio"`
	CameraID       *string        `json:"cameraId,omitempty"`
	LocationID     *string        `json:"locationId,omitempty"`
	ImageBase64    *string        `json:"-"`
	Acknowledged   bool           `gorm:"not null;default:false" json:"acknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy *string        `json:"acknowledgedBy,omitempty"`
	CreatedAt      time.Time      `json:"-"`
}

// FireRecord stores one positive fire finding, same lifecycle as
// ThreatRecord.
type FireRecord struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	DetectionID    *int64         `json:"detectionId,omitempty"`
	Timestamp      time.Time      `gorm:"not null" json:"timestamp"`
	Address        string         `gorm:"not null" json:"address"`
	ZoneName       *string        `json:"zoneName,omitempty"`
	Plate          *string        `gorm:"index" json:"plate,omitempty"`
	VehicleColor   *string        `json:"vehicleColor,omitempty"`
	VehicleType    *string        `json:"vehicleType,omitempty"`
	Findings       datatypes.JSON `gorm:"type:jsonb" json:"fires"`
	AlertText      string         `gorm:"not null" json:"alertText"`
	HasAudio       bool           `json:"hasAudio"`
	CameraID       *string        `json:"cameraId,omitempty"`
	LocationID     *string        `json:"locationId,omitempty"`
	ImageBase64    *string        `json:"-"`
	Acknowledged   bool           `gorm:"not null;default:false" json:"acknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy *string        `json:"acknowledgedBy,omitempty"`
	CreatedAt      time.Time      `json:"-"`
}

type AlarmRepository struct {
	db *gorm.DB
}

func NewAlarmRepository(db *gorm.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

func (r *AlarmRepository) CreateThreat(ctx context.Context, record *ThreatRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *AlarmRepository) CreateFire(ctx context.Context, record *FireRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *AlarmRepository) FindThreatsAfter(ctx context.Context, cursor int64, limit int) ([]ThreatRecord, error) {
	var records []ThreatRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", cursor).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *AlarmRepository) AcknowledgeThreat(ctx context.Context, id int64, operator string) error {
	return r.acknowledge(ctx, &ThreatRecord{}, id, operator)
}

func (r *AlarmRepository) AcknowledgeFire(ctx context.Context, id int64, operator string) error {
	return r.acknowledge(ctx, &FireRecord{}, id, operator)
}

func (r *AlarmRepository) acknowledge(ctx context.Context, model any, id int64, operator string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Updates(map[string]any{
			"acknowledged":    true,
			"acknowledged_at": now,
			"acknowledged_by": operator,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
