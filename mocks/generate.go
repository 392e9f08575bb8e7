package mocks

//go:generate mockgen -destination=./mock_registry.go -package=mocks github.com/rxtech-lab/argo-fusion/internal/registry Registry
//go:generate mockgen -destination=./mock_artifact_store.go -package=mocks github.com/rxtech-lab/argo-fusion/internal/model ArtifactStore
//go:generate mockgen -destination=./mock_signal_sink.go -package=mocks github.com/rxtech-lab/argo-fusion/internal/inference SignalSink
