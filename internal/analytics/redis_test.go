package analytics

import (
	"testing"
	"time"
)

func TestKey_HourBucketsInUTC(t *testing.T) {
	bucket := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	if got := Key("elder-1", "success", bucket); got != "checkin:elder-1:success:2024030123" {
		t.Errorf("Key = %q", got)
	}

	// A zoned timestamp lands in its UTC hour, not its local one.
	zoned := time.Date(2024, 3, 2, 7, 0, 0, 0, time.FixedZone("SGT", 8*3600))
	if got := Key("elder-1", "failed", zoned); got != "checkin:elder-1:failed:2024030123" {
		t.Errorf("zoned Key = %q", got)
	}
}

func TestKey_SameHourSharesBucket(t *testing.T) {
	a := Key("elder-1", "success", time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC))
	b := Key("elder-1", "success", time.Date(2024, 3, 1, 12, 59, 59, 0, time.UTC))
	if a != b {
		t.Errorf("same hour must share a bucket: %q vs %q", a, b)
	}
}
