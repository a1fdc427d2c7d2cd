package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const jsonContentType = "application/json; charset=utf-8"

// RespondJSONWithETag serves payload with a strong ETag and asks clients to
// revalidate on every use. Admin views go through here.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	respondTagged(ctx, status, payload, "private, no-cache")
}

// RespondPublicJSON is RespondJSONWithETag for anonymous directory data:
// shared caches may keep it for maxAge, matching the server-side cache TTL.
func RespondPublicJSON(ctx *gin.Context, status int, payload any, maxAge time.Duration) {
	cc := "public, no-cache"
	if secs := int(maxAge / time.Second); secs > 0 {
		cc = "public, max-age=" + strconv.Itoa(secs)
	}
	respondTagged(ctx, status, payload, cc)
}

func respondTagged(ctx *gin.Context, status int, payload any, cacheControl string) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	etag := bodyETag(body)
	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", cacheControl)

	if status == http.StatusOK && etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, jsonContentType, body)
}

// bodyETag is the first 128 bits of the body's sha256, quoted.
func bodyETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches applies If-None-Match weak comparison against current.
func etagMatches(header, current string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := strings.TrimPrefix(current, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
