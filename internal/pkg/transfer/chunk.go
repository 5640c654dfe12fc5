package transfer

// PartSize — размер одной части переноса, 512 КиБ.
const PartSize = 512 * 1024

// bigFileThreshold — граница между small- и big-file режимами загрузки.
const bigFileThreshold = 10 * 1024 * 1024

// Plan — неизменяемое описание разбиения файла на части
// для одной попытки переноса.
type Plan struct {
	TotalSize int64
	PartSize  int
	PartCount int
	Big       bool
}

// NewPlan строит план для файла размером totalSize байт.
func NewPlan(totalSize int64) Plan {
	count := int((totalSize + PartSize - 1) / PartSize)
	return Plan{
		TotalSize: totalSize,
		PartSize:  PartSize,
		PartCount: count,
		Big:       totalSize > bigFileThreshold,
	}
}

// PartAt возвращает смещение и длину части index.
// Вызывающий гарантирует 0 <= index < PartCount.
func (p Plan) PartAt(index int) (offset int64, length int) {
	offset = int64(index) * int64(p.PartSize)
	length = p.PartSize
	if rest := p.TotalSize - offset; rest < int64(length) {
		length = int(rest)
	}
	return offset, length
}
