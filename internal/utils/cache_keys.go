package utils

import (
	"strconv"
	"strings"
)

// DirectoryCachePrefix covers every cached public directory response.
const DirectoryCachePrefix = "clinics:v1:"

func ClinicsListCacheKey(status, query string) string {
	return DirectoryCachePrefix + "list:status=" + strings.ToLower(strings.TrimSpace(status)) +
		":q=" + strings.ToLower(strings.TrimSpace(query))
}

func ClinicMapCacheKey() string {
	return DirectoryCachePrefix + "map"
}

func ClinicDetailCacheKey(id int64) string {
	return DirectoryCachePrefix + "detail:" + strconv.FormatInt(id, 10)
}
