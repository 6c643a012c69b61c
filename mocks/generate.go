package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-signal-bridge/internal/trading Broker
//go:generate mockgen -destination=./mock_journal.go -package=mocks github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine/engine_v1/writers Journal
//go:generate mockgen -destination=./mock_signal_engine.go -package=mocks github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine SignalEngine
