package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
const (
	fieldAccountID    = "account_id"
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldIsVerified   = "is_verified"
	fieldPendingOTP   = "pending_otp"
	fieldResetToken   = "pending_reset_token"
	fieldVersion      = "version"
	fieldUpdatedAt    = "updated_at"
)
