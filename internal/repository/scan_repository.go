package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"scan-service/internal/models"
)

// ScanRepository defines the scan store operations used by the pipeline.
// "Current version per type" is an explicit flag maintained by Replace
// instead of first-match-wins retrieval over duplicate rows.
type ScanRepository interface {
	Create(scan *models.Scan) error
	GetByID(id uuid.UUID) (*models.Scan, error)
	FindCurrentByTypeAndPatient(scanType string, patientID uuid.UUID) (*models.Scan, error)
	FindByTypeAndPatient(scanType string, patientID uuid.UUID) ([]models.Scan, error)
	ListByPatient(patientID uuid.UUID) ([]models.Scan, error)
	Replace(scan *models.Scan) error
	Delete(id uuid.UUID) error
}

// ScanRepositoryImpl provides GORM-backed scan store access.
type ScanRepositoryImpl struct {
	db *gorm.DB
}

// NewScanRepository creates a ScanRepositoryImpl with the given GORM connection.
func NewScanRepository(db *gorm.DB) *ScanRepositoryImpl {
	return &ScanRepositoryImpl{db: db}
}

// Create inserts a new Scan row as the current version of its type.
func (r *ScanRepositoryImpl) Create(scan *models.Scan) error {
	scan.IsCurrent = true
	if scan.Version == 0 {
		scan.Version = 1
	}
	return r.db.Create(scan).Error
}

// GetByID retrieves a Scan by its ID.
func (r *ScanRepositoryImpl) GetByID(id uuid.UUID) (*models.Scan, error) {
	var scan models.Scan
	err := r.db.First(&scan, "id = ?", id).Error
	return &scan, err
}

// FindCurrentByTypeAndPatient returns the current scan for (patientId, type).
// Lookups by canonical type also match rows written under legacy alias tags.
func (r *ScanRepositoryImpl) FindCurrentByTypeAndPatient(scanType string, patientID uuid.UUID) (*models.Scan, error) {
	tags := models.AliasesFor(models.CanonicalType(scanType))
	var scan models.Scan
	err := r.db.
		Where("patient_id = ? AND type IN ? AND is_current = ?", patientID, tags, true).
		Order("created_at DESC").
		First(&scan).Error
	return &scan, err
}

// FindByTypeAndPatient returns every version for (patientId, type), newest
// first.
func (r *ScanRepositoryImpl) FindByTypeAndPatient(scanType string, patientID uuid.UUID) ([]models.Scan, error) {
	tags := models.AliasesFor(models.CanonicalType(scanType))
	var scans []models.Scan
	err := r.db.
		Where("patient_id = ? AND type IN ?", patientID, tags).
		Order("created_at DESC").
		Find(&scans).Error
	return scans, err
}

// ListByPatient returns all scan rows for the patient, newest first.
func (r *ScanRepositoryImpl) ListByPatient(patientID uuid.UUID) ([]models.Scan, error) {
	var scans []models.Scan
	err := r.db.
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&scans).Error
	return scans, err
}

// Replace installs scan as the new current version of its type in one
// transaction: demote the previous current row, then insert with an
// incremented version. Two sessions replacing concurrently serialize on the
// row update instead of silently racing.
func (r *ScanRepositoryImpl) Replace(scan *models.Scan) error {
	tags := models.AliasesFor(models.CanonicalType(scan.Type))
	return r.db.Transaction(func(tx *gorm.DB) error {
		var prev models.Scan
		err := tx.
			Where("patient_id = ? AND type IN ? AND is_current = ?", scan.PatientID, tags, true).
			Order("created_at DESC").
			First(&prev).Error
		switch {
		case err == nil:
			if uerr := tx.Model(&models.Scan{}).
				Where("id = ?", prev.ID).
				Updates(map[string]interface{}{"is_current": false, "updated_at": time.Now()}).Error; uerr != nil {
				return uerr
			}
			scan.Version = prev.Version + 1
		case err == gorm.ErrRecordNotFound:
			scan.Version = 1
		default:
			return err
		}
		scan.IsCurrent = true
		return tx.Create(scan).Error
	})
}

// Delete removes a Scan row by ID.
func (r *ScanRepositoryImpl) Delete(id uuid.UUID) error {
	return r.db.Delete(&models.Scan{}, "id = ?", id).Error
}
