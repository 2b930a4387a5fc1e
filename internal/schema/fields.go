package schema

// Field is one logical column with every header spelling it may appear under.
// Synonyms are stored in normalized form (see NormalizeLabel).
type Field struct {
	// Name is the logical field name, e.g. "student_id".
	Name string
	// Label is the human name used in error reasons.
	Label string
	// Synonyms are the accepted normalized header spellings.
	Synonyms []string
}

// Matches reports whether a raw header label is one of the field's spellings.
func (f Field) Matches(label string) bool {
	n := NormalizeLabel(label)
	for _, s := range f.Synonyms {
		if s == n {
			return true
		}
	}
	return false
}

// In reports whether any of labels matches the field.
func (f Field) In(labels []string) bool {
	for _, l := range labels {
		if f.Matches(l) {
			return true
		}
	}
	return false
}

// Course columns.
var (
	CourseName = Field{Name: "name", Label: "course name",
		Synonyms: []string{"nome", "name", "nomecurso", "coursename"}}
	CourseCode = Field{Name: "code", Label: "course code",
		Synonyms: []string{"codigo", "code", "codigocurso", "coursecode"}}
	TotalSemesters = Field{Name: "total_semesters", Label: "total semesters",
		Synonyms: []string{"totalsemestre", "totalsemestres", "semestres", "semesters", "totalsemesters"}}
	StartDate = Field{Name: "start_date", Label: "start date",
		Synonyms: []string{"datainicio", "startdate", "inicio", "dataini"}}
)

// Student columns.
var (
	StudentName = Field{Name: "name", Label: "name",
		Synonyms: []string{"nome", "name", "nomealuno", "studentname"}}
	StudentID = Field{Name: "student_id", Label: "student ID",
		Synonyms: []string{"studentid", "matricula", "idaluno", "codigoaluno"}}
	Email = Field{Name: "email", Label: "email",
		Synonyms: []string{"email", "correio", "emailaluno"}}
	StudentCourse = Field{Name: "course", Label: "course",
		Synonyms: []string{"curso", "course", "nomecurso", "coursename", "codigocurso", "coursecode"}}
	Gender = Field{Name: "gender", Label: "gender",
		Synonyms: []string{"sexo", "sex", "gender", "genero"}}
	Ethnicity = Field{Name: "ethnicity", Label: "ethnicity",
		Synonyms: []string{"raca", "race", "etnia", "ethnicity", "cor", "racacor"}}
	AverageIncome = Field{Name: "average_income", Label: "average income",
		Synonyms: []string{"renda", "rendamedia", "income", "averageincome", "rendafamiliar"}}
)

// Grade columns.
var (
	GradeValue = Field{Name: "grade", Label: "grade",
		Synonyms: []string{"grade", "nota", "score", "pontuacao"}}
	GradeSubject = Field{Name: "subject", Label: "subject",
		Synonyms: []string{"subject", "disciplina", "subjectname", "nomedisciplina", "subjectcode", "codigodisciplina"}}
	AssessmentType = Field{Name: "assessment_type", Label: "assessment type",
		Synonyms: []string{"assessmenttype", "tipoavaliacao"}}
	AssessmentName = Field{Name: "assessment_name", Label: "assessment name",
		Synonyms: []string{"assessmentname", "avaliacao", "nomeavaliacao", "tipo"}}
	MaxGrade = Field{Name: "max_grade", Label: "max grade",
		Synonyms: []string{"maxgrade", "notamaxima", "maxscore", "pontuacaomaxima"}}
	DateAssigned = Field{Name: "date_assigned", Label: "date assigned",
		Synonyms: []string{"dateassigned", "data", "date", "dataavaliacao"}}
)

// Subject columns.
var (
	SubjectName = Field{Name: "name", Label: "subject name",
		Synonyms: []string{"nome", "name", "nomedisciplina", "subjectname"}}
	SubjectCode = Field{Name: "code", Label: "subject code",
		Synonyms: []string{"codigo", "code", "codigodisciplina", "subjectcode"}}
	SubjectSemester = Field{Name: "semester", Label: "semester",
		Synonyms: []string{"semestre", "semester"}}
	SubjectYear = Field{Name: "year", Label: "year",
		Synonyms: []string{"ano", "year"}}
	SubjectCourse = Field{Name: "course", Label: "course",
		Synonyms: []string{"curso", "course", "codigocurso", "coursecode"}}
)

// assessmentTypeSignal is what the classifier counts as an assessment-type
// column. It is wider than AssessmentType because "tipo" is read as the
// assessment name when importing.
var assessmentTypeSignal = Field{Name: "assessment_type", Label: "assessment type",
	Synonyms: append([]string{"tipo"}, AssessmentType.Synonyms...)}

// Fields lists the recognized columns for each importable kind.
var Fields = map[Kind][]Field{
	KindCourse:  {CourseName, CourseCode, TotalSemesters, StartDate},
	KindStudent: {StudentName, StudentID, Email, StudentCourse, Gender, Ethnicity, AverageIncome},
	KindGrade:   {StudentID, GradeSubject, GradeValue, MaxGrade, AssessmentType, AssessmentName, DateAssigned},
	KindSubject: {SubjectName, SubjectCode, SubjectSemester, SubjectYear, SubjectCourse},
}
