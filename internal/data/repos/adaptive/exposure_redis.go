package adaptive

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/medquiz-backend/internal/platform/dbctx"
	"github.com/yungbote/medquiz-backend/internal/platform/logger"
)

// redisExposureLog keeps one hash per learner: field = item id, value = unix millis.
// The key expires after the retention period of inactivity.
type redisExposureLog struct {
	rdb       goredis.UniversalClient
	prefix    string
	retention time.Duration
	log       *logger.Logger
}

func NewRedisExposureLog(rdb goredis.UniversalClient, prefix string, retention time.Duration, baseLog *logger.Logger) ExposureLog {
	if strings.TrimSpace(prefix) == "" {
		prefix = "medquiz:exposure"
	}
	return &redisExposureLog{
		rdb:       rdb,
		prefix:    prefix,
		retention: retention,
		log:       baseLog.With("repo", "RedisExposureLog"),
	}
}

func (r *redisExposureLog) key(learnerID uuid.UUID) string {
	return r.prefix + ":" + learnerID.String()
}

func (r *redisExposureLog) Touch(dbc dbctx.Context, learnerID uuid.UUID, itemID string, at time.Time) error {
	itemID = strings.TrimSpace(itemID)
	if learnerID == uuid.Nil || itemID == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	key := r.key(learnerID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(dbc.Ctx, key, itemID, at.UnixMilli())
	if r.retention > 0 {
		pipe.Expire(dbc.Ctx, key, r.retention)
	}
	_, err := pipe.Exec(dbc.Ctx)
	return err
}

func (r *redisExposureLog) LastSeen(dbc dbctx.Context, learnerID uuid.UUID, itemIDs []string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	clean := uniqueStrings(itemIDs)
	if learnerID == uuid.Nil || len(clean) == 0 {
		return out, nil
	}
	vals, err := r.rdb.HMGet(dbc.Ctx, r.key(learnerID), clean...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			r.log.Warn("bad exposure value", "item_id", clean[i], "value", s)
			continue
		}
		out[clean[i]] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}
