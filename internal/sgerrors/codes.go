// Package sgerrors provides the structured error taxonomy used across the
// indexer and search core. Error codes follow the pattern
// ERR_XXX_DESCRIPTION where:
//   - 1XX: configuration errors
//   - 2XX: I/O errors (filesystem, network)
//   - 3XX: parse errors
//   - 4XX: store errors
//   - 5XX: embedding errors
//   - 6XX: search/timeout/cancellation errors
package sgerrors

// Kind enumerates the error taxonomy.
type Kind string

const (
	KindIO        Kind = "IoError"
	KindParse     Kind = "ParseError"
	KindStore     Kind = "StoreError"
	KindEmbedding Kind = "EmbeddingError"
	KindConfig    Kind = "ConfigError"
	KindTimeout   Kind = "Timeout"
	KindCancelled Kind = "Cancelled"
)

// Error codes organized by category.
const (
	CodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	CodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	CodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	CodeFilePermission = "ERR_202_FILE_PERMISSION"

	CodeParseFailed = "ERR_301_PARSE_FAILED"

	CodeStoreTxFailed   = "ERR_401_STORE_TX_FAILED"
	CodeStoreOpenFailed = "ERR_402_STORE_OPEN_FAILED"
	CodeSchemaUnknown   = "ERR_403_SCHEMA_UNKNOWN"

	CodeEmbeddingFailed  = "ERR_501_EMBEDDING_FAILED"
	CodeEmbeddingTimeout = "ERR_502_EMBEDDING_TIMEOUT"

	CodeSearchTimeout  = "ERR_601_SEARCH_TIMEOUT"
	CodeOperationCancel = "ERR_602_OPERATION_CANCELLED"
)

// retryableCodes lists codes considered transient and safe to retry.
var retryableCodes = map[string]bool{
	CodeEmbeddingTimeout: true,
	CodeEmbeddingFailed:  true,
	CodeFilePermission:   false,
}

func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
