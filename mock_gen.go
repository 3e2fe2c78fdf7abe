package kstorm

//go:generate mockgen -destination=mock_kcluster_test.go -package=kstorm github.com/birdayz/kstorm/kcluster Runtime,Handle
