package importer

// TemplateFilename is the download name of Template.
const TemplateFilename = "template_transacoes.csv"

// Template is the sample CSV offered to users. Every header is an exact alias.
const Template = `data,ticker,tipo,quantidade,preco,taxas,observacoes
2024-01-15,WEGE3,compra,100,35.50,0,Primeira compra
2024-02-20,PETR4,compra,200,28.75,4.90,
2024-03-10,WEGE3,venda,50,38.00,0,Venda parcial
2024-04-05,ITUB4,compra,150,22.30,0,
`
