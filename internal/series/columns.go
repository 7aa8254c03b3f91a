package series

// TimeLayout is the fixed-width local timestamp written in the datetime column.
const TimeLayout = "01-02-2006 15:04:05.000000"

// Column names in file order. The first fourteen match the historical layout;
// the trailing ones were added later and are optional when reading.
const (
	ColDatetime   = "datetime"
	ColThreads    = "num_threads"
	ColCPUPercent = "cpu_percent"
	ColCPUUser    = "cpu_t_user"
	ColCPUSystem  = "cpu_t_system"
	ColMemRSS     = "mem_rss"
	ColMemVMS     = "mem_vms"
	ColMemShared  = "mem_shared"
	ColMemPercent = "mem_percentage"
	ColFDs        = "num_fds"
	ColReadCount  = "read_count"
	ColWriteCount = "write_count"
	ColReadBytes  = "read_bytes"
	ColWriteBytes = "write_bytes"
	ColPID        = "pid"
	ColIOWait     = "cpu_t_iowait"
	ColName       = "name"
	ColCmdline    = "cmdline"
)

// Columns is the header row written by Writer.
var Columns = []string{
	ColDatetime,
	ColThreads,
	ColCPUPercent,
	ColCPUUser,
	ColCPUSystem,
	ColMemRSS,
	ColMemVMS,
	ColMemShared,
	ColMemPercent,
	ColFDs,
	ColReadCount,
	ColWriteCount,
	ColReadBytes,
	ColWriteBytes,
	ColPID,
	ColIOWait,
	ColName,
	ColCmdline,
}

// legacyAliases maps column names used by older files to current ones.
var legacyAliases = map[string]string{
	"read_chars":  ColReadBytes,
	"write_chars": ColWriteBytes,
}
