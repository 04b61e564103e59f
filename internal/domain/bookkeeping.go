package domain

// AddressActivity tracks when an address was first and last ingested on a network.
type AddressActivity struct {
	Address          string
	FirstSeen        int64
	LastChecked      int64
	TransactionCount int
}

// NetworkHead is the single bookkeeping row of a namespace.
type NetworkHead struct {
	LastBlock   uint64
	LastUpdated int64
}

// RowError is a record the store refused while the rest of the batch went through.
type RowError struct {
	Hash string
	Err  error
}

func (e RowError) Error() string {
	return "row " + e.Hash + ": " + e.Err.Error()
}

func (e RowError) Unwrap() error {
	return e.Err
}

// CommitResult reports what one commit did to a namespace. Stored holds the
// records newly written by this commit, in batch order.
type CommitResult struct {
	Stored     []TransactionRecord
	Inserted   int
	Ignored    int
	RowErrors  []RowError
	AddressErr error
	HeadErr    error
	LastBlock  uint64
}

// Clean reports whether every step of the commit succeeded.
func (r CommitResult) Clean() bool {
	return len(r.RowErrors) == 0 && r.AddressErr == nil && r.HeadErr == nil
}
