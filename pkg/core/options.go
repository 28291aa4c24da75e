package core

// AddOptions contains options for Add operations.
type AddOptions struct {
	// UserID scopes the memory to an owner. Empty means global scope.
	UserID string

	// Metadata contains caller-supplied attributes stored on the record.
	Metadata map[string]interface{}
}

// AddOption is a function type for configuring Add operations.
type AddOption func(*AddOptions)

// WithUserID sets the owner for an Add operation.
//
// Example:
//
//	result, _ := client.Add(ctx, "User lives in Mumbai", core.WithUserID("alice"))
func WithUserID(userID string) AddOption {
	return func(opts *AddOptions) {
		opts.UserID = userID
	}
}

// WithMetadata attaches metadata to an Add operation.
//
// Example:
//
//	result, _ := client.Add(ctx, "User likes sushi",
//	    core.WithMetadata(map[string]interface{}{"source": "chat"}))
func WithMetadata(metadata map[string]interface{}) AddOption {
	return func(opts *AddOptions) {
		opts.Metadata = metadata
	}
}

// QueryOptions contains options for Query operations.
type QueryOptions struct {
	// UserID scopes the query to an owner's memories.
	UserID string

	// TopK is the maximum number of results (0 = default).
	TopK int
}

// QueryOption is a function type for configuring Query operations.
type QueryOption func(*QueryOptions)

// WithUserIDForQuery scopes a Query to an owner.
func WithUserIDForQuery(userID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.UserID = userID
	}
}

// WithTopK sets the maximum number of Query results.
func WithTopK(topK int) QueryOption {
	return func(opts *QueryOptions) {
		opts.TopK = topK
	}
}

// UpdateOptions contains options for Update operations.
type UpdateOptions struct {
	// UserID restricts the update to memories belonging to this owner.
	UserID string
}

// UpdateOption is a function type for configuring Update operations.
type UpdateOption func(*UpdateOptions)

// WithUserIDForUpdate scopes an Update to an owner.
func WithUserIDForUpdate(userID string) UpdateOption {
	return func(opts *UpdateOptions) {
		opts.UserID = userID
	}
}

// DeleteOptions contains options for Delete operations.
type DeleteOptions struct {
	// UserID restricts the deletion to memories belonging to this owner.
	UserID string
}

// DeleteOption is a function type for configuring Delete operations.
type DeleteOption func(*DeleteOptions)

// WithUserIDForDelete scopes a Delete to an owner.
func WithUserIDForDelete(userID string) DeleteOption {
	return func(opts *DeleteOptions) {
		opts.UserID = userID
	}
}

// GetOptions contains options for Get operations.
type GetOptions struct {
	// UserID restricts access to memories belonging to this owner.
	UserID string
}

// GetOption is a function type for configuring Get operations.
type GetOption func(*GetOptions)

// WithUserIDForGet scopes a Get to an owner.
func WithUserIDForGet(userID string) GetOption {
	return func(opts *GetOptions) {
		opts.UserID = userID
	}
}

// GetAllOptions contains options for GetAll operations.
type GetAllOptions struct {
	// UserID filters results to a single owner. Empty returns all records.
	UserID string

	// Limit sets the maximum number of results (0 = no limit).
	Limit int

	// Offset sets the number of results to skip.
	Offset int
}

// GetAllOption is a function type for configuring GetAll operations.
type GetAllOption func(*GetAllOptions)

// WithUserIDForGetAll filters GetAll results to an owner.
func WithUserIDForGetAll(userID string) GetAllOption {
	return func(opts *GetAllOptions) {
		opts.UserID = userID
	}
}

// WithLimitForGetAll caps the number of GetAll results.
func WithLimitForGetAll(limit int) GetAllOption {
	return func(opts *GetAllOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first n GetAll results (for pagination).
func WithOffset(offset int) GetAllOption {
	return func(opts *GetAllOptions) {
		opts.Offset = offset
	}
}
