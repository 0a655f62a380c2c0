package service

import "warden/internal/domain/entity"

// ClientInfoParser extracts browser, OS and device class from a user agent string.
type ClientInfoParser interface {
	Parse(userAgent string) entity.ClientInfo
}
