package ports

type Policy struct {
	QueueCapacity int `yaml:"queue_capacity"`
	MaxBatchSize  int `yaml:"max_batch_size"`
}
