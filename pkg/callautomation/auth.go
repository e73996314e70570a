package callautomation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const signedHeaders = "x-ms-date;host;x-ms-content-sha256"

// ParseConnectionString splits an
// "endpoint=https://...;accesskey=..." connection string.
func ParseConnectionString(conn string) (endpoint, accessKey string, err error) {
	for _, part := range strings.Split(conn, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "endpoint":
			endpoint = strings.TrimSpace(value)
		case "accesskey":
			accessKey = strings.TrimSpace(value)
		}
	}
	if endpoint == "" || accessKey == "" {
		return "", "", fmt.Errorf("connection string must contain endpoint and accesskey")
	}
	return endpoint, accessKey, nil
}

// sign adds the HMAC-SHA256 headers expected by Communication Services.
func sign(req *http.Request, body []byte, key []byte, now time.Time) {
	hash := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(hash[:])
	date := now.UTC().Format(http.TimeFormat)
	host := req.URL.Host

	stringToSign := req.Method + "\n" + req.URL.RequestURI() + "\n" + date + ";" + host + ";" + contentHash

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHash)
	req.Header.Set("Authorization", "HMAC-SHA256 SignedHeaders="+signedHeaders+"&Signature="+signature)
}
