package engine

// PoolOutcome is the result of a pool provisioning call. Provisioning errors
// are absorbed into the runtime's status instead of being returned.
type PoolOutcome struct {
	Err error
}

func poolOK() PoolOutcome { return PoolOutcome{} }

func poolFailed(err error) PoolOutcome { return PoolOutcome{Err: err} }

// OK reports whether the orchestrator applied the change.
func (o PoolOutcome) OK() bool { return o.Err == nil }

// CreateStatus is the runtime status recorded after pool creation.
func (o PoolOutcome) CreateStatus() RuntimeStatus {
	if o.OK() {
		return RuntimeAvailable
	}
	return RuntimeError
}

// UpdateImage picks the image recorded after a pool update: the new image on
// success, the previous one otherwise.
func (o PoolOutcome) UpdateImage(image, preImage string) string {
	if o.OK() {
		return image
	}
	return preImage
}

func (o PoolOutcome) result() string {
	if o.OK() {
		return "ok"
	}
	return "error"
}
