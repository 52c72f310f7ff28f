package adaptive

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/medquiz-backend/internal/domain"
	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

type ItemCalibrationRepo interface {
	// Latest returns the is_latest row per item. Items with no history are absent from the map;
	// items with history but not exactly one latest row fail with ErrCalibrationIntegrity.
	Latest(dbc dbctx.Context, itemIDs []string) (map[string]*types.ItemCalibration, error)
	History(dbc dbctx.Context, itemID string) ([]*types.ItemCalibration, error)
	// AppendLatest inserts row as the next version and moves the latest flag to it atomically.
	AppendLatest(dbc dbctx.Context, row *types.ItemCalibration) error
	// SeedIfMissing inserts row as version 1 when the item has no calibration yet.
	SeedIfMissing(dbc dbctx.Context, row *types.ItemCalibration) (bool, error)
}

type itemCalibrationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemCalibrationRepo(db *gorm.DB, baseLog *logger.Logger) ItemCalibrationRepo {
	return &itemCalibrationRepo{db: db, log: baseLog.With("repo", "ItemCalibrationRepo")}
}

func (r *itemCalibrationRepo) Latest(dbc dbctx.Context, itemIDs []string) (map[string]*types.ItemCalibration, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[string]*types.ItemCalibration{}
	clean := uniqueStrings(itemIDs)
	if len(clean) == 0 {
		return out, nil
	}

	rows := []*types.ItemCalibration{}
	if err := t.WithContext(dbc.Ctx).
		Where("item_id IN ? AND is_latest = ?", clean, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, dup := out[row.ItemID]; dup {
			r.log.Error("multiple latest calibrations", "item_id", row.ItemID)
			return nil, fmt.Errorf("%w: item %s has more than one latest version", ErrCalibrationIntegrity, row.ItemID)
		}
		out[row.ItemID] = row
	}

	missing := make([]string, 0)
	for _, id := range clean {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	var orphaned []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ItemCalibration{}).
		Where("item_id IN ?", missing).
		Distinct().
		Pluck("item_id", &orphaned).Error; err != nil {
		return nil, err
	}
	if len(orphaned) > 0 {
		r.log.Error("calibration history without latest version", "item_ids", orphaned)
		return nil, fmt.Errorf("%w: items %s have history but no latest version", ErrCalibrationIntegrity, strings.Join(orphaned, ","))
	}
	return out, nil
}

func (r *itemCalibrationRepo) History(dbc dbctx.Context, itemID string) ([]*types.ItemCalibration, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.ItemCalibration{}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("item_id = ?", itemID).
		Order("version DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *itemCalibrationRepo) AppendLatest(dbc dbctx.Context, row *types.ItemCalibration) error {
	if row == nil {
		return nil
	}
	row.ItemID = strings.TrimSpace(row.ItemID)
	if row.ItemID == "" {
		return fmt.Errorf("append calibration: missing item_id")
	}
	if dbc.Tx != nil {
		return r.appendLatest(dbc.Tx, dbc, row)
	}
	return r.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return r.appendLatest(tx, dbc, row)
	})
}

func (r *itemCalibrationRepo) appendLatest(tx *gorm.DB, dbc dbctx.Context, row *types.ItemCalibration) error {
	var current []*types.ItemCalibration
	if err := tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ? AND is_latest = ?", row.ItemID, true).
		Find(&current).Error; err != nil {
		return err
	}
	if len(current) > 1 {
		return fmt.Errorf("%w: item %s has more than one latest version", ErrCalibrationIntegrity, row.ItemID)
	}

	var maxVersion int
	if err := tx.WithContext(dbc.Ctx).
		Model(&types.ItemCalibration{}).
		Where("item_id = ?", row.ItemID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return err
	}
	if len(current) == 0 && maxVersion > 0 {
		return fmt.Errorf("%w: item %s has history but no latest version", ErrCalibrationIntegrity, row.ItemID)
	}

	// The partial unique index is not deferrable, so the old flag is cleared before the insert.
	if len(current) == 1 {
		if err := tx.WithContext(dbc.Ctx).
			Model(&types.ItemCalibration{}).
			Where("id = ?", current[0].ID).
			Update("is_latest", false).Error; err != nil {
			return err
		}
	}

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.Version = maxVersion + 1
	row.IsLatest = true
	return tx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *itemCalibrationRepo) SeedIfMissing(dbc dbctx.Context, row *types.ItemCalibration) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return false, nil
	}
	row.ItemID = strings.TrimSpace(row.ItemID)
	if row.ItemID == "" {
		return false, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.Version = 1
	row.IsLatest = true

	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func uniqueStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
