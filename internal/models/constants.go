package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	// DateLayout формат даты записи
	DateLayout = "2006-01-02"

	// TimeLayout канонический формат времени записи
	TimeLayout = "15:04:05"

	// ShortTimeLayout допустимый входной формат времени
	ShortTimeLayout = "15:04"

	// DefaultCategory категория услуги по умолчанию
	DefaultCategory = "Общая"

	// DefaultRating рейтинг нового мастера
	DefaultRating = "5.0"

	// MaxExperienceYears максимальный стаж мастера
	MaxExperienceYears = 50

	// MinClientNameLength минимальная длина имени клиента
	MinClientNameLength = 2

	// MaxClientNameLength максимальная длина имени клиента
	MaxClientNameLength = 200

	// MaxNotesLength максимальная длина примечания к записи
	MaxNotesLength = 1000

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// ServiceImagesDir каталог изображений услуг внутри media
	ServiceImagesDir = "services"

	// MasterPhotosDir каталог фотографий мастеров внутри media
	MasterPhotosDir = "masters/photos"
)
