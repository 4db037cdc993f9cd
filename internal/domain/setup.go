package domain

// SetupStep is the coarse position of the trading setup pipeline.
type SetupStep string

const (
	StepDisconnected          SetupStep = "disconnected"
	StepConnecting            SetupStep = "connecting"
	StepConnected             SetupStep = "connected"
	StepGeneratingCredentials SetupStep = "generating-credentials"
	StepReady                 SetupStep = "ready"
	StepError                 SetupStep = "error"
)

// SetupStatus is the snapshot observed by clients.
type SetupStatus struct {
	IsWalletConnected bool             `json:"isWalletConnected"`
	WalletAddress     string           `json:"walletAddress,omitempty"`
	ChainID           int              `json:"chainId,omitempty"`
	RequiredChainID   int              `json:"requiredChainId"`
	IsCorrectChain    bool             `json:"isCorrectChain"`
	HasCredentials    bool             `json:"hasCredentials"`
	Credentials       *ClobCredentials `json:"credentials,omitempty"`
	IsReadyToTrade    bool             `json:"isReadyToTrade"`
	IsLoading         bool             `json:"isLoading"`
	Error             string           `json:"error,omitempty"`
	CurrentStep       SetupStep        `json:"currentStep"`
}

// Redacted masks the credential secret parts.
func (s SetupStatus) Redacted() SetupStatus {
	if s.Credentials != nil {
		c := s.Credentials.Redacted()
		s.Credentials = &c
	}
	return s
}
