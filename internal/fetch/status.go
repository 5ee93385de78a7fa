package fetch

import "strconv"

// Status is the persisted form of a fetch outcome. The column mixes
// integer HTTP statuses with a sentinel vocabulary, so the stored type is a
// string; this type keeps the vocabulary in one place.
type Status string

// Sentinel statuses recorded when no usable HTTP status exists.
const (
	// StatusNetworkError marks request-level failures (DNS, TLS, refused).
	StatusNetworkError Status = "000"
	// StatusError marks non-network failures during the fetch.
	StatusError Status = "ERR"

	// Domain harvester stage sentinels.
	StatusErrTrafi      Status = "ERR_TRAFI"
	StatusErrArchive    Status = "ERR_ARCHIVE"
	StatusErrArchiveNF  Status = "ERR_ARCHIVE_NF"
	StatusErrArchiveTO  Status = "ERR_ARCHIVE_TO"
	StatusErrArchiveReq Status = "ERR_ARCHIVE_REQ"
	StatusReqNoHTML     Status = "REQ_NO_HTML"
	StatusErrUnknown    Status = "ERR_UNKNOWN"
	StatusErrProcess    Status = "ERR_PROCESS"
	StatusErrNoStatus   Status = "ERR_NO_STATUS"
	StatusErrAllFailed  Status = "ERR_ALL_FAILED"
)

// FromCode converts an HTTP status code to its stored form.
func FromCode(code int) Status {
	return Status(strconv.Itoa(code))
}

// Code returns the numeric HTTP status, or 0 for sentinels.
func (s Status) Code() int {
	code, err := strconv.Atoi(string(s))
	if err != nil {
		return 0
	}
	return code
}

// OK reports whether the status is a 2xx HTTP status.
func (s Status) OK() bool {
	code := s.Code()
	return code >= 200 && code < 300
}

func (s Status) String() string {
	return string(s)
}
