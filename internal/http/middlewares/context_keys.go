package middlewares

// Keys stashed on *gin.Context. Plain strings so handlers can read them with c.GetString.
const (
	CtxRequestID = "request_id"
	CtxTargetID  = "target_id"
	CtxJobID     = "job_id"
	ctxProfile   = "account.profile"
)
