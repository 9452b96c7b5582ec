package broker

// PersistentLease is the on-disk representation of one live lease, written
// at shutdown and read back at startup. Credentials are referenced only by
// their fingerprint; the snapshot never stores a user or password, so it
// leaks neither, only the fact that some credential was in use.
type PersistentLease struct {
	LeaseID    string     `yaml:"lease_id"`
	Expiration Expiration `yaml:"expiration"`
	ClientName string     `yaml:"client_name"`
	CredHash   string     `yaml:"cred_hash"`
}
