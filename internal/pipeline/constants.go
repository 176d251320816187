package pipeline

// Stage names are shown to users in job status and failure messages.
const (
	StageHarvest  = "提取基础流水表格"
	StageParse    = "整理流水表格"
	StageClean    = "去重处理"
	StageFinalize = "生成流水总表"
	StageTransfer = "生成单笔转账表"
	StageAmount   = "生成交易总额表"
	StageLoad     = "导入数据库"
	StageWorkbook = "导出工作簿"
)

// Intermediate artifacts, written under the report's logs directory.
const (
	HarvestFile = "step1_basic_transactions.csv"
	ParseFile   = "step2_organized_transactions.csv"
	CleanFile   = "step3_deduplicated_transactions.csv"
)

// Final artifacts, written under the report's output directory. The file
// stems double as store table names.
const (
	LedgerFile   = "流水总表.csv"
	TransferFile = "单笔转账.csv"
	AmountFile   = "交易总额.csv"
)

// pagesDir holds page files downloaded from a gs:// input.
const pagesDir = "pages"

// reportSuffix is stripped from input directory names when deriving a report name.
const reportSuffix = "-files"
