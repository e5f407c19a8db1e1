package dynamo

// DynamoDB attribute names used in keys and update expressions across all repos.
const (
	attrEmail     = "email"
	attrUserID    = "user_id"
	attrSessionID = "session_id"
	attrProductID = "product_id"
	attrCategory  = "category"

	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldExpiresAt        = "expires_at"
)

// Global secondary index names.
const (
	indexUserID       = "user_id-index"
	indexRefreshToken = "refresh_token-index"
	indexCategory     = "category-index"
)
