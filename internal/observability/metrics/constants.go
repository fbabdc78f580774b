package metrics

// Operation names recorded by the collectors.
const (
	OpDbQuery    = "db_query"
	OpDbInsert   = "db_insert"
	OpDbUpdate   = "db_update"
	OpDbDelete   = "db_delete"
	OpDbRaw      = "db_raw"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket parameters.
const (
	BucketStart1ms  = 0.001
	BucketStart10ms = 0.01
	BucketFactor2   = 2
	BucketCount12   = 12
	BucketCount10   = 10
)
