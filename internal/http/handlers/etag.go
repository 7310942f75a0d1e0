package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/domain/job"
)

// directoryETag versions an admin directory view. Every profile write refreshes
// updated_at, so (id, role, updated_at) per listed user plus the stats and query is
// enough to tell two views apart without serialising them.
func directoryETag(v directoryView) string {
	h := sha256.New()

	for _, p := range v.Users {
		fmt.Fprintf(h, "u|%s|%s|%d\n", p.ID, p.Role, p.UpdatedAt.UnixNano())
	}
	fmt.Fprintf(h, "s|%d|%d|%d\n", v.Stats.TotalUsers, v.Stats.AdminUsers, v.Stats.NewUsersThisMonth)
	fmt.Fprintf(h, "q|%s", v.Query)

	return weakTag(h)
}

// jobsETag versions a page of mail jobs; status, attempts and updated_at move together.
func jobsETag(items []job.Job, next *string) string {
	h := sha256.New()

	for _, j := range items {
		fmt.Fprintf(h, "j|%s|%s|%d|%d\n", j.ID, j.Status, j.Attempts, j.UpdatedAt.UnixNano())
	}
	if next != nil {
		fmt.Fprintf(h, "n|%s", *next)
	}

	return weakTag(h)
}

func weakTag(h hash.Hash) string {
	return `W/"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`
}

// respondWithETag answers 304 with no body when If-None-Match already names etag.
func respondWithETag(ctx *gin.Context, etag string, payload any) {
	ctx.Header("ETag", etag)

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

// etagMatches uses weak comparison, which is what If-None-Match calls for.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := opaqueTag(etag)
	for _, part := range strings.Split(header, ",") {
		if opaqueTag(part) == want {
			return true
		}
	}
	return false
}

func opaqueTag(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "W/")
}
