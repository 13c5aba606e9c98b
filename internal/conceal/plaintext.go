package conceal

// plaintextBackend is the open-hand variant: the artifact is the value itself.
// It exists so the engine can run the same protocol shape with no concealment
// at all (casual rooms, debugging).
type plaintextBackend struct{}

func (plaintextBackend) Name() string { return TagPlaintext }

func (plaintextBackend) Bind(_, _ uint8, value uint8, _ []byte) ([]byte, error) {
	return []byte{value}, nil
}

func (plaintextBackend) Verify(artifact []byte, _, _ uint8, value uint8, _ []byte) bool {
	return len(artifact) == 1 && artifact[0] == value
}
