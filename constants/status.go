package constants

// JobStatus is the canonical status for rows in capture_jobs.
type JobStatus string

// Stable values (store these exact strings in the DB).
const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// JobType identifies which cloud provider a deferred job targets.
type JobType string

const (
	JobTypeCloudOCR   JobType = "CLOUD_OCR"
	JobTypeInsight    JobType = "VISION_INSIGHT"
	JobTypeCompliance JobType = "VISION_COMPLIANCE"
)

// QualityLevel grades a captured frame.
type QualityLevel string

const (
	QualityPoor       QualityLevel = "POOR"
	QualityAcceptable QualityLevel = "ACCEPTABLE"
	QualityGood       QualityLevel = "GOOD"
	QualityExcellent  QualityLevel = "EXCELLENT"
)

// FindingStatus classifies a template-analysis value against its range.
type FindingStatus string

const (
	FindingNormal       FindingStatus = "NORMAL"
	FindingAbnormalLow  FindingStatus = "ABNORMAL_LOW"
	FindingAbnormalHigh FindingStatus = "ABNORMAL_HIGH"
	FindingCriticalLow  FindingStatus = "CRITICAL_LOW"
	FindingCriticalHigh FindingStatus = "CRITICAL_HIGH"
	FindingHigh         FindingStatus = "HIGH"
	FindingInfo         FindingStatus = "INFO"
)

// ComplianceStatus summarizes the compliance checks of an insight.
type ComplianceStatus string

const (
	CompliancePassed        ComplianceStatus = "PASSED"
	ComplianceFailed        ComplianceStatus = "FAILED"
	ComplianceWarning       ComplianceStatus = "WARNING"
	ComplianceNotApplicable ComplianceStatus = "NOT_APPLICABLE"
)

// PHIEntityType tags a detected piece of personal health information.
type PHIEntityType string

const (
	PHIName                PHIEntityType = "NAME"
	PHIOrganization        PHIEntityType = "ORGANIZATION"
	PHILocation            PHIEntityType = "LOCATION"
	PHIDate                PHIEntityType = "DATE"
	PHIPhone               PHIEntityType = "PHONE"
	PHIMedicalRecordNumber PHIEntityType = "MEDICAL_RECORD_NUMBER"
	PHINationalID          PHIEntityType = "NATIONAL_ID"
)

// BlockType tags an OCR text block.
type BlockType string

const (
	BlockHeading   BlockType = "HEADING"
	BlockParagraph BlockType = "PARAGRAPH"
	BlockList      BlockType = "LIST"
	BlockTable     BlockType = "TABLE"
	BlockSignature BlockType = "SIGNATURE"
	BlockStamp     BlockType = "STAMP"
)
