package nns

// Record types of the NNS contract used by this package.
const (
	// TXT records hold contract addresses either in Neo address format or as
	// little-endian hex-encoded script hashes.
	TXT = 16
)

// DefaultVotingName is the domain under which the Voting contract is expected
// to be registered if no explicit contract address is configured.
const DefaultVotingName = "voting.neo"
